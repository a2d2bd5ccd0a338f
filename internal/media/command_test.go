package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// argAfter returns the argument following flag, or "" if flag is absent.
func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestTrim(t *testing.T) {
	inv, err := Trim("/in.mp4", "/out.mp4", 5, 2.5)
	require.NoError(t, err)

	args := inv.Args()
	assert.Equal(t, "trim", inv.Name())
	assert.Equal(t, "5.000", argAfter(args, "-ss"))
	assert.Equal(t, "/in.mp4", argAfter(args, "-i"))
	assert.Equal(t, "2.500", argAfter(args, "-t"))
	assert.Equal(t, "libx264", argAfter(args, "-c:v"))
	assert.Equal(t, "aac", argAfter(args, "-c:a"))
	assert.Equal(t, "/out.mp4", args[len(args)-1])
	assert.Equal(t, []string{"/in.mp4"}, inv.Inputs())
	assert.Equal(t, "/out.mp4", inv.Output())

	// Seeking before -i makes ffmpeg seek the input instead of decoding up to start.
	assert.Less(t, indexOf(args, "-ss"), indexOf(args, "-i"))
}

func TestTrim_InvalidDuration(t *testing.T) {
	_, err := Trim("/in.mp4", "/out.mp4", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = Trim("/in.mp4", "/out.mp4", -1, 1)
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	inv, err := Resize("/in.mp4", "/out.mp4", 640, 360)
	require.NoError(t, err)

	args := inv.Args()
	assert.Equal(t, "scale=640:360", argAfter(args, "-vf"))
	assert.Equal(t, "libx264", argAfter(args, "-c:v"))
	assert.Equal(t, "aac", argAfter(args, "-c:a"))

	for _, tc := range []struct{ w, h int }{{0, 100}, {100, 0}, {-1, 100}, {100, -1}} {
		_, err := Resize("/in.mp4", "/out.mp4", tc.w, tc.h)
		assert.ErrorIs(t, err, ErrInvalidDimensions, "w=%d h=%d", tc.w, tc.h)
	}
}

func TestNormalize(t *testing.T) {
	inv := Normalize("/in.mp4", "/norm.mp4")
	args := inv.Args()

	assert.Equal(t, "scale=1280:720", argAfter(args, "-vf"))
	assert.Equal(t, "30", argAfter(args, "-r"))
	assert.Equal(t, "libx264", argAfter(args, "-c:v"))
	assert.Equal(t, "fast", argAfter(args, "-preset"))
	assert.Equal(t, "23", argAfter(args, "-crf"))
	assert.Equal(t, "aac", argAfter(args, "-c:a"))
	assert.Equal(t, "128k", argAfter(args, "-b:a"))
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.txt")
	inputs := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "it's.mp4")}

	inv, err := Merge(list, inputs, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	args := inv.Args()
	assert.Equal(t, "concat", argAfter(args, "-f"))
	assert.Equal(t, "0", argAfter(args, "-safe"))
	assert.Equal(t, list, argAfter(args, "-i"))
	assert.Equal(t, "copy", argAfter(args, "-c"))
	assert.Equal(t, append([]string{list}, inputs...), inv.Inputs())

	content, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+inputs[0]+"'", lines[0])
	assert.Equal(t, "file '"+filepath.Join(dir, `it'\''s.mp4`)+"'", lines[1])
}

func TestMerge_NoInputs(t *testing.T) {
	_, err := Merge(filepath.Join(t.TempDir(), "list.txt"), nil, "/out.mp4")
	assert.ErrorIs(t, err, ErrNoInputs)
}

func TestMerge_ListAlreadyExists(t *testing.T) {
	list := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("x"), 0600))

	_, err := Merge(list, []string{"/a.mp4"}, "/out.mp4")
	assert.Error(t, err)
}

func TestAddAudio(t *testing.T) {
	inv, err := AddAudio("/v.mp4", "/c.mp3", "/b.mp3", "/out.mp4", 0, 1)
	require.NoError(t, err)

	args := inv.Args()
	filter := argAfter(args, "-filter_complex")
	assert.Contains(t, filter, "[1:a]volume=0[content]")
	assert.Contains(t, filter, "[2:a]volume=1[background]")
	assert.Contains(t, filter, "amix=inputs=2:duration=shortest:normalize=0")
	assert.Equal(t, "copy", argAfter(args, "-c:v"))
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, []string{"/v.mp4", "/c.mp3", "/b.mp3"}, inv.Inputs())

	// Inputs are mapped by position: video, content, background.
	var inputs []string
	for i, a := range args {
		if a == "-i" {
			inputs = append(inputs, args[i+1])
		}
	}
	assert.Equal(t, []string{"/v.mp4", "/c.mp3", "/b.mp3"}, inputs)
}

func TestAddAudio_FractionalVolumes(t *testing.T) {
	inv, err := AddAudio("/v.mp4", "/c.mp3", "/b.mp3", "/out.mp4", 0.75, 0.2)
	require.NoError(t, err)

	filter := argAfter(inv.Args(), "-filter_complex")
	assert.Contains(t, filter, "volume=0.75[content]")
	assert.Contains(t, filter, "volume=0.2[background]")
}

func TestAddAudio_NegativeVolume(t *testing.T) {
	_, err := AddAudio("/v.mp4", "/c.mp3", "/b.mp3", "/out.mp4", -1, 1)
	assert.ErrorIs(t, err, ErrInvalidVolume)
}

func TestImagesToVideo(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "images.txt")
	images := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.jpg"), filepath.Join(dir, "c.jpeg")}

	inv, err := ImagesToVideo(list, images, 2, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	args := inv.Args()
	assert.Equal(t, "1/2", argAfter(args, "-r"))
	assert.Equal(t, list, argAfter(args, "-i"))
	assert.Equal(t, "yuv420p", argAfter(args, "-pix_fmt"))
	assert.Contains(t, argAfter(args, "-vf"), "fps=30")
	assert.Less(t, indexOf(args, "-r"), indexOf(args, "-i"), "input rate must precede -i")

	content, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	for i, img := range images {
		assert.Equal(t, "file '"+img+"'", lines[i])
	}
}

func TestImagesToVideo_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := ImagesToVideo(filepath.Join(dir, "l1.txt"), nil, 2, "/out.mp4")
	assert.ErrorIs(t, err, ErrNoInputs)

	_, err = ImagesToVideo(filepath.Join(dir, "l2.txt"), []string{"/a.png"}, 0, "/out.mp4")
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestInvocation_Immutable(t *testing.T) {
	args := []string{"-i", "in.mp4", "out.mp4"}
	inv := NewInvocation("test", args, []string{"in.mp4"}, "out.mp4")

	args[1] = "evil.mp4"
	got := inv.Args()
	got[2] = "changed.mp4"

	assert.Equal(t, []string{"-i", "in.mp4", "out.mp4"}, inv.Args())
	assert.Equal(t, "test: -i in.mp4 out.mp4", inv.String())
}

func TestBuilders_NoShellInterpretation(t *testing.T) {
	hostile := "/tmp/x.mp4; rm -rf / #"
	inv, err := Resize(hostile, "/out.mp4", 10, 10)
	require.NoError(t, err)

	// The path is a single argument, passed through untouched.
	assert.Equal(t, hostile, argAfter(inv.Args(), "-i"))
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}
