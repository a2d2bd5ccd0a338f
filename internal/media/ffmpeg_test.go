package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestImage creates a simple test image using ffmpeg.
func createTestImage(t *testing.T, path string, width, height int, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=1", color, width, height),
		"-frames:v", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test image: %v\noutput: %s", err, output)
	}
}

// createTestVideo creates a simple test video with silent audio using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, size, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%s:d=%.1f", color, size, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// createTestAudio creates a sine tone using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64, freq int) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=%d:duration=%.1f", freq, duration),
		"-c:a", "aac",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

func runInvocation(t *testing.T, inv Invocation) {
	t.Helper()

	e := NewExecutor("", WithDefaultTimeout(30*time.Second))
	if _, err := e.Run(context.Background(), inv, 0); err != nil {
		t.Fatalf("%s failed: %v", inv.Name(), err)
	}
	info, err := os.Stat(inv.Output())
	if err != nil {
		t.Fatalf("output file was not created: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("output file is empty")
	}
}

func TestFFmpeg_Trim(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "input.mp4")
	output := filepath.Join(tmpDir, "trimmed.mp4")
	createTestVideo(t, input, 2, "64x64", "red")

	inv, err := Trim(input, output, 0.5, 1)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	runInvocation(t, inv)

	duration := getVideoDuration(t, output)
	if duration < 0.8 || duration > 1.2 {
		t.Errorf("expected trimmed duration ~1.0s, got %.2f", duration)
	}
}

func TestFFmpeg_Resize(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "input.mp4")
	output := filepath.Join(tmpDir, "resized.mp4")
	createTestVideo(t, input, 0.5, "64x64", "blue")

	inv, err := Resize(input, output, 32, 48)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	runInvocation(t, inv)

	verifyDimensions(t, output, 32, 48)
}

func TestFFmpeg_NormalizeAndMerge(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	video1 := filepath.Join(tmpDir, "video1.mp4")
	video2 := filepath.Join(tmpDir, "video2.mp4")
	createTestVideo(t, video1, 0.5, "64x64", "red")
	createTestVideo(t, video2, 0.5, "96x48", "green")

	var normalized []string
	for i, v := range []string{video1, video2} {
		out := filepath.Join(tmpDir, fmt.Sprintf("norm%d.mp4", i))
		runInvocation(t, Normalize(v, out))
		verifyDimensions(t, out, NormalizeWidth, NormalizeHeight)
		normalized = append(normalized, out)
	}

	output := filepath.Join(tmpDir, "merged.mp4")
	inv, err := Merge(filepath.Join(tmpDir, "list.txt"), normalized, output)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	runInvocation(t, inv)

	duration := getVideoDuration(t, output)
	if duration < 0.9 || duration > 1.2 {
		t.Errorf("expected merged duration ~1.0s, got %.2f", duration)
	}
}

func TestFFmpeg_AddAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "video.mp4")
	content := filepath.Join(tmpDir, "content.m4a")
	background := filepath.Join(tmpDir, "background.m4a")
	output := filepath.Join(tmpDir, "mixed.mp4")

	createTestVideo(t, video, 1, "64x64", "red")
	createTestAudio(t, content, 2, 440)
	createTestAudio(t, background, 2, 220)

	inv, err := AddAudio(video, content, background, output, 0, 0.5)
	if err != nil {
		t.Fatalf("AddAudio failed: %v", err)
	}
	runInvocation(t, inv)

	duration := getVideoDuration(t, output)
	if duration > 1.3 {
		t.Errorf("expected output to end with the shortest input, got %.2fs", duration)
	}
}

func TestFFmpeg_ImagesToVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	var images []string
	for i, color := range []string{"red", "green", "blue"} {
		img := filepath.Join(tmpDir, fmt.Sprintf("img%d.png", i))
		createTestImage(t, img, 63, 41, color)
		images = append(images, img)
	}

	output := filepath.Join(tmpDir, "slideshow.mp4")
	inv, err := ImagesToVideo(filepath.Join(tmpDir, "images.txt"), images, 1, output)
	if err != nil {
		t.Fatalf("ImagesToVideo failed: %v", err)
	}
	runInvocation(t, inv)

	// Odd source dimensions are rounded down to even ones for yuv420p.
	verifyDimensions(t, output, 62, 40)

	duration := getVideoDuration(t, output)
	if duration < 2 || duration > 3.5 {
		t.Errorf("expected slideshow duration ~3s, got %.2f", duration)
	}
}

func TestFFmpeg_MissingInput(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	inv, err := Resize(filepath.Join(tmpDir, "missing.mp4"), filepath.Join(tmpDir, "out.mp4"), 32, 32)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	_, err = NewExecutor("").Run(context.Background(), inv, 10*time.Second)
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProcessingError, got %T: %v", err, err)
	}
	if perr.ExitCode == 0 {
		t.Error("expected non-zero exit code")
	}
	if !strings.Contains(perr.Stderr, "missing.mp4") {
		t.Errorf("expected stderr to mention the input, got %q", perr.Stderr)
	}
}

func verifyDimensions(t *testing.T, path string, expectedW, expectedH int) {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("ffprobe failed: %v", err)
	}

	var w, h int
	n, err := fmt.Sscanf(string(output), "%dx%d", &w, &h)
	if err != nil || n != 2 {
		t.Fatalf("failed to parse dimensions from ffprobe output: %s", output)
	}

	if w != expectedW || h != expectedH {
		t.Errorf("expected dimensions %dx%d, got %dx%d", expectedW, expectedH, w, h)
	}
}

func getVideoDuration(t *testing.T, path string) float64 {
	t.Helper()

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("ffprobe failed: %v", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(string(output), "%f", &duration); err != nil {
		t.Fatalf("failed to parse duration: %s", output)
	}

	return duration
}
