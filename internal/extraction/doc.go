// Package extraction turns files into document.RawRecords.
//
// Each supported extension maps to an Extractor through a Registry:
//
//	.pdf                              PDFExtractor (direct text, OCR fallback)
//	.docx .doc                        WordExtractor (OOXML parser, converter fallback)
//	.md .txt .yaml .yml .json .csv .log  TextExtractor (utf-8, latin-1, cp1252)
//	.png .jpg .jpeg .tiff .bmp        ImageExtractor (vision model, OCR or none)
//
// External tools (tesseract, pdftoppm, antiword) are invoked through a
// CommandRunner so tests can substitute canned output.
package extraction
