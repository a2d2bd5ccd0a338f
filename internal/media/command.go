package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for command construction.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoInputs is returned when a concatenation has nothing to concatenate.
	ErrNoInputs = errors.New("no input paths provided")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidVolume is returned for negative gains.
	ErrInvalidVolume = errors.New("invalid volume: must not be negative")
)

// Geometry and encoding profile every merge input is normalized to.
const (
	NormalizeWidth  = 1280
	NormalizeHeight = 720
	NormalizeFPS    = 30

	videoCodec   = "libx264"
	audioCodec   = "aac"
	preset       = "fast"
	crf          = "23"
	audioBitrate = "128k"
	pixelFormat  = "yuv420p"
	slideshowFPS = 30
)

// baseArgs are prepended to every invocation: overwrite output, no banner,
// never read stdin.
func baseArgs() []string {
	return []string{"-y", "-hide_banner", "-nostdin"}
}

// Trim cuts duration seconds starting at start and re-encodes video and audio.
func Trim(input, output string, start, duration Timecode) (Invocation, error) {
	if duration <= 0 {
		return Invocation{}, fmt.Errorf("%w: got %s", ErrInvalidDuration, duration)
	}
	if start < 0 {
		return Invocation{}, fmt.Errorf("invalid start time: %s", start)
	}

	args := append(baseArgs(),
		"-ss", start.String(), // Seek before decoding
		"-i", input,
		"-t", duration.String(), // Limit output duration
		"-c:v", videoCodec,
		"-c:a", audioCodec,
		output,
	)
	return NewInvocation("trim", args, []string{input}, output), nil
}

// Resize scales the video to exactly width x height and re-encodes it.
func Resize(input, output string, width, height int) (Invocation, error) {
	if width <= 0 || height <= 0 {
		return Invocation{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	args := append(baseArgs(),
		"-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-c:v", videoCodec,
		"-c:a", audioCodec,
		output,
	)
	return NewInvocation("resize", args, []string{input}, output), nil
}

// Normalize re-encodes a video to the common merge profile so that
// heterogeneous inputs can be stream-copied together afterwards.
func Normalize(input, output string) Invocation {
	args := append(baseArgs(),
		"-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d", NormalizeWidth, NormalizeHeight),
		"-r", strconv.Itoa(NormalizeFPS),
		"-c:v", videoCodec,
		"-preset", preset,
		"-crf", crf,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		output,
	)
	return NewInvocation("normalize", args, []string{input}, output)
}

// Merge writes a concat list for inputs to listFile and returns a stream-copy
// concatenation of them into output. Inputs must already share geometry,
// frame rate and codecs (see Normalize).
func Merge(listFile string, inputs []string, output string) (Invocation, error) {
	if len(inputs) == 0 {
		return Invocation{}, ErrNoInputs
	}
	if err := writeConcatList(listFile, inputs); err != nil {
		return Invocation{}, fmt.Errorf("create concat list: %w", err)
	}

	args := append(baseArgs(),
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile,
		"-c", "copy", // Copy streams without re-encoding
		output,
	)
	return NewInvocation("merge", args, append([]string{listFile}, inputs...), output), nil
}

// AddAudio mixes content and background audio at the given gains and lays the
// mix over the video stream, which is copied untouched. The output ends with
// the shortest input.
func AddAudio(video, content, background, output string, contentVolume, backgroundVolume float64) (Invocation, error) {
	if contentVolume < 0 || backgroundVolume < 0 {
		return Invocation{}, fmt.Errorf("%w: content=%v, background=%v", ErrInvalidVolume, contentVolume, backgroundVolume)
	}

	// normalize=0 keeps amix from scaling each input by 1/inputs, so a muted
	// content track leaves the background at its own level.
	filter := fmt.Sprintf(
		"[1:a]volume=%s[content];[2:a]volume=%s[background];[content][background]amix=inputs=2:duration=shortest:normalize=0[aout]",
		formatNumber(contentVolume), formatNumber(backgroundVolume),
	)

	args := append(baseArgs(),
		"-i", video,
		"-i", content,
		"-i", background,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-shortest",
		output,
	)
	return NewInvocation("add_audio", args, []string{video, content, background}, output), nil
}

// ImagesToVideo writes a concat list of images to listFile and returns an
// invocation that shows each image for perImage seconds, in order.
func ImagesToVideo(listFile string, images []string, perImage float64, output string) (Invocation, error) {
	if len(images) == 0 {
		return Invocation{}, ErrNoInputs
	}
	if perImage <= 0 {
		return Invocation{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, perImage)
	}
	if err := writeConcatList(listFile, images); err != nil {
		return Invocation{}, fmt.Errorf("create concat list: %w", err)
	}

	// Reading the list at 1/perImage frames per second holds every image for
	// perImage seconds; fps then resamples to a regular output rate.
	filter := fmt.Sprintf("fps=%d,scale=trunc(iw/2)*2:trunc(ih/2)*2,format=%s", slideshowFPS, pixelFormat)

	args := append(baseArgs(),
		"-f", "concat",
		"-safe", "0",
		"-r", "1/"+formatNumber(perImage),
		"-i", listFile,
		"-vf", filter,
		"-c:v", videoCodec,
		"-preset", preset,
		"-pix_fmt", pixelFormat, // Pixel format for compatibility
		output,
	)
	return NewInvocation("images_to_video", args, append([]string{listFile}, images...), output), nil
}

// writeConcatList creates the file list in the format required by ffmpeg's
// concat demuxer.
func writeConcatList(listFile string, paths []string) (err error) {
	f, err := os.OpenFile(listFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - listFile is a scratch path
	if err != nil {
		return fmt.Errorf("create list file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", `'\''`)
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return fmt.Errorf("write to concat list: %w", err)
		}
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
