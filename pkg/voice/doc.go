// Package voice speaks alert phrases without ever blocking the frame loop.
//
// A Speaker hands each phrase to its own goroutine, which synthesizes it
// with a tts.Provider and plays the audio through a Player. Failures are
// logged at debug and dropped: a missed announcement must never stall
// distance estimation.
//
//	provider, _ := tts.New("espeak")
//	speaker := voice.NewSpeaker(provider, voice.NewCommandPlayer("aplay", "-q"), logger)
//	speaker.Speak("Person at 1.5 meters")
package voice
