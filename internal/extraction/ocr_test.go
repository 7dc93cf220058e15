package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderingRunner imitates pdftoppm by writing n page images next to the
// output prefix, and tesseract by echoing the image name.
func renderingRunner(t *testing.T, pages int) *fakeRunner {
	return &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			for i := 1; i <= pages; i++ {
				img := fmt.Sprintf("%s-%02d.png", prefix, i)
				require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))
			}
			return nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0]) + "\n"), nil
		}
		return nil, fmt.Errorf("unexpected command %s", name)
	}}
}

func TestOCREngine_ImageText(t *testing.T) {
	runner := &fakeRunner{handle: func(string, []string) ([]byte, error) {
		return []byte("  Login button\n\n"), nil
	}}
	o := NewOCREngine(OCRConfig{Language: "deu"}, runner, nil)

	text, err := o.ImageText(context.Background(), "/in/shot.png")
	require.NoError(t, err)
	assert.Equal(t, "Login button", text)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "tesseract", runner.calls[0].name)
	assert.Equal(t, []string{"/in/shot.png", "stdout", "-l", "deu"}, runner.calls[0].args)
}

func TestOCREngine_MissingTool(t *testing.T) {
	runner := &fakeRunner{handle: func(name string, _ []string) ([]byte, error) {
		return nil, notFound(name)
	}}
	o := NewOCREngine(OCRConfig{}, runner, nil)

	_, err := o.ImageText(context.Background(), "shot.png")
	assert.ErrorIs(t, err, ErrOCRUnavailable)

	_, err = o.PDFPages(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrOCRUnavailable)
}

func TestOCREngine_PDFPagesInOrder(t *testing.T) {
	runner := renderingRunner(t, 11)
	o := NewOCREngine(OCRConfig{DPI: 150}, runner, nil)

	texts, err := o.PDFPages(context.Background(), "scan.pdf")
	require.NoError(t, err)
	require.Len(t, texts, 11)
	assert.Equal(t, "text of page-01.png", texts[0])
	assert.Equal(t, "text of page-02.png", texts[1])
	assert.Equal(t, "text of page-11.png", texts[10])

	render := runner.calls[0]
	assert.Equal(t, "pdftoppm", render.name)
	assert.Equal(t, []string{"-r", "150", "-png", "scan.pdf"}, render.args[:4])
	assert.True(t, strings.HasSuffix(render.args[4], "page"))
	assert.Equal(t, 11, runner.count("tesseract"))
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 3, pageNumber("/tmp/x/page-3.png"))
	assert.Equal(t, 12, pageNumber("/tmp/x/page-012.png"))
	assert.Equal(t, 0, pageNumber("/tmp/x/cover.png"))
}
