//go:build whispercpp

package engine

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
#include "ggml.h"

bool whisperGoAbort(void * user_data);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/cgo"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
)

// detectWindowSamples bounds the audio fed to language detection.
const detectWindowSamples = 30 * audio.SampleRate

func NativeAvailable() bool { return true }

// NativeEngine runs whisper.cpp on the CPU.
type NativeEngine struct {
	mu sync.Mutex

	ctx          *C.struct_whisper_context
	threads      int
	multilingual bool
	decoder      *audio.Decoder
	log          *slog.Logger
}

func NewNativeEngine(opts NativeOptions) (Engine, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = audio.NewDecoder("", logger)
	}

	cPath := C.CString(opts.ModelPath)
	defer C.free(unsafe.Pointer(cPath))
	cParams := C.whisper_context_default_params()
	cParams.use_gpu = C.bool(false)

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return nil, fmt.Errorf("whisper: failed to initialise context for %s", opts.ModelPath)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	return &NativeEngine{
		ctx:          ctx,
		threads:      threads,
		multilingual: C.whisper_is_multilingual(ctx) != 0,
		decoder:      decoder,
		log:          logger.With("component", "engine.native", "threads", threads),
	}, nil
}

func (e *NativeEngine) Transcribe(ctx context.Context, path string, opts Options) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, err := prepareAudio(ctx, e.decoder, path, opts)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	language, probability, err := e.resolveLanguage(ctx, prepared.speech, opts.Language)
	if err != nil {
		return nil, err
	}
	observe(opts.Observer, StageDetectLanguage, started)

	info := Info{
		Language:            language,
		LanguageProbability: probability,
		Duration:            prepared.duration,
		DurationAfterVAD:    prepared.durationAfterVAD(),
	}
	e.log.Debug("audio prepared",
		"duration", info.Duration,
		"duration_after_vad", info.DurationAfterVAD,
		"chunks", len(prepared.chunks),
		"language", language,
	)

	return newLazyStream(info, prepared.timestamps, func() ([]Segment, error) {
		started := time.Now()
		defer observe(opts.Observer, StageDecodeSegments, started)
		return e.decode(ctx, prepared.speech, language, opts.BeamSize)
	}), nil
}

func (e *NativeEngine) resolveLanguage(ctx context.Context, speech []float32, forced string) (string, float64, error) {
	if !e.multilingual {
		if forced != "" && forced != "en" {
			e.log.Warn("english-only model ignores requested language", "language", forced)
		}
		return "en", 1, nil
	}
	if forced != "" {
		cLang := C.CString(forced)
		defer C.free(unsafe.Pointer(cLang))
		if C.whisper_lang_id(cLang) < 0 {
			return "", 0, fmt.Errorf("whisper: unsupported language %q", forced)
		}
		return forced, 1, nil
	}
	if len(speech) == 0 {
		return "en", 1, nil
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	window := speech
	if len(window) > detectWindowSamples {
		window = window[:detectWindowSamples]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := C.whisper_init_state(e.ctx)
	if state == nil {
		return "", 0, errors.New("whisper: failed to initialise state")
	}
	defer C.whisper_free_state(state)

	cSamples := (*C.float)(unsafe.Pointer(&window[0]))
	if ret := C.whisper_pcm_to_mel_with_state(e.ctx, state, cSamples, C.int(len(window)), C.int(e.threads)); ret != 0 {
		return "", 0, fmt.Errorf("whisper: mel spectrogram failed with code %d", int(ret))
	}

	probs := make([]C.float, int(C.whisper_lang_max_id())+1)
	id := C.whisper_lang_auto_detect_with_state(e.ctx, state, 0, C.int(e.threads), &probs[0])
	if id < 0 {
		return "", 0, fmt.Errorf("whisper: language detection failed with code %d", int(id))
	}
	return C.GoString(C.whisper_lang_str(id)), float64(probs[id]), nil
}

func (e *NativeEngine) decode(ctx context.Context, speech []float32, language string, beamSize int) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(speech) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := C.whisper_init_state(e.ctx)
	if state == nil {
		return nil, errors.New("whisper: failed to initialise state")
	}
	defer C.whisper_free_state(state)

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	if beamSize > 1 {
		params = C.whisper_full_default_params(C.WHISPER_SAMPLING_BEAM_SEARCH)
		params.beam_search.beam_size = C.int(beamSize)
	}
	params.n_threads = C.int(e.threads)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.print_timestamps = C.bool(false)
	params.print_special = C.bool(false)
	params.translate = C.bool(false)
	params.no_context = C.bool(false)
	params.single_segment = C.bool(false)
	params.detect_language = C.bool(false)

	cLang := C.CString(language)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang

	handle := cgo.NewHandle(ctx)
	defer handle.Delete()
	params.abort_callback = (C.ggml_abort_callback)(C.whisperGoAbort)
	params.abort_callback_user_data = unsafe.Pointer(&handle)

	cSamples := (*C.float)(unsafe.Pointer(&speech[0]))
	if ret := C.whisper_full_with_state(e.ctx, state, params, cSamples, C.int(len(speech))); ret != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("whisper: inference failed with code %d", int(ret))
	}

	return collectSegments(state), nil
}

func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		C.whisper_free(e.ctx)
		e.ctx = nil
	}
	return nil
}

//export whisperGoAbort
func whisperGoAbort(userData unsafe.Pointer) C.bool {
	return C.bool(shouldAbort(userData))
}

// collectSegments reads segments from state; whisper timestamps are centiseconds.
func collectSegments(state *C.struct_whisper_state) []Segment {
	count := int(C.whisper_full_n_segments_from_state(state))
	segments := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		text := C.GoString(C.whisper_full_get_segment_text_from_state(state, C.int(i)))
		if isBlankMarker(text) || strings.TrimSpace(text) == "" {
			continue
		}
		t0 := int64(C.whisper_full_get_segment_t0_from_state(state, C.int(i)))
		t1 := int64(C.whisper_full_get_segment_t1_from_state(state, C.int(i)))
		segments = append(segments, Segment{
			Start: float64(t0) / 100,
			End:   float64(t1) / 100,
			Text:  text,
		})
	}
	return segments
}
