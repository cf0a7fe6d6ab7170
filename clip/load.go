package clip

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	beepwav "github.com/gopxl/beep/v2/wav"
)

const (
	// FFmpegExec is the ffmpeg binary used for formats beep cannot decode.
	FFmpegExec = "ffmpeg"
	// FFmpegSampleRate is the rate ffmpeg resamples fallback decodes to.
	FFmpegSampleRate = 48000

	ffmpegChannels = 2
	ffmpegBufSize  = 65307
)

// Load decodes an audio file into a Buffer.
// WAV and MP3 are decoded in-process; anything else, or a file the in-process
// decoder rejects, is piped through ffmpeg.
func Load(ctx context.Context, path string) (*Buffer, error) {
	var (
		buf *Buffer
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		buf, err = loadWith(path, func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
			return beepwav.Decode(f)
		})
	case ".mp3":
		buf, err = loadWith(path, func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
			return mp3.Decode(f)
		})
	default:
		return DecodeWithFFmpeg(ctx, path)
	}
	if err == nil {
		return buf, nil
	}

	slog.Debug("In-process decode failed, falling back to ffmpeg",
		slog.String("component", "clip"),
		slog.String("path", path),
		slog.Any("error", err))

	if buf, ffErr := DecodeWithFFmpeg(ctx, path); ffErr == nil {
		return buf, nil
	}
	return nil, err
}

func loadWith(path string, decode func(*os.File) (beep.StreamSeekCloser, beep.Format, error)) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer streamer.Close()

	return FromStreamer(streamer, format)
}

// DecodeWithFFmpeg runs ffmpeg to convert any supported input into s16le stereo.
func DecodeWithFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	if _, err := exec.LookPath(FFmpegExec); err != nil {
		return nil, fmt.Errorf("%w: %s not available", ErrUnsupportedFormat, FFmpegExec)
	}

	cmd := exec.CommandContext(ctx, FFmpegExec,
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-ac", strconv.Itoa(ffmpegChannels),
		"-ar", strconv.Itoa(FFmpegSampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	buf, readErr := readS16LE(bufio.NewReaderSize(pipe, ffmpegBufSize), ffmpegChannels, FFmpegSampleRate)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg exited with error: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, readErr
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyClip
	}
	return buf, nil
}

func readS16LE(r io.Reader, channels, sampleRate int) (*Buffer, error) {
	out := &Buffer{SampleRate: sampleRate, Data: make([][]float32, channels)}
	frame := make([]byte, 2*channels)
	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return nil, fmt.Errorf("error reading PCM data: %w", err)
		}
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(frame[c*2 : c*2+2]))
			out.Data[c] = append(out.Data[c], float32(v)/32767)
		}
	}
}
