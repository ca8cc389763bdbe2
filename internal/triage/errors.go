package triage

import (
	"errors"

	"symptom-triage/internal/transcribe"
)

var (
	// ErrInitializationFailed wraps any failure while building resources at startup.
	ErrInitializationFailed = errors.New("analyzer initialization failed")
	// ErrNotInitialized is returned by every method of an analyzer that was never built.
	ErrNotInitialized = errors.New("analyzer not initialized")
	// ErrNoSpeechDetected is returned when submitted audio holds no meaningful speech.
	ErrNoSpeechDetected = transcribe.ErrNoSpeechDetected
	// ErrRetrievalUnavailable is returned by knowledge-base queries when no index was loaded.
	ErrRetrievalUnavailable = errors.New("knowledge retrieval unavailable")
	// ErrTranscriptionUnavailable is returned when no speech backend is configured.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrAnalysisFailed wraps language-model and retrieval failures.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrEmptyTranscript is returned for blank transcripts and queries.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrInvalidAudio is returned when the audio payload cannot be decoded.
	ErrInvalidAudio = errors.New("invalid audio payload")
)
