package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

const documentPart = "word/document.xml"

// Merge loads a template container, resolves every tag in its body
// against ctx and serialises a new container. Output is byte-for-byte
// deterministic for identical inputs: unchanged entries are copied with
// their original compressed bytes and headers.
func Merge(template []byte, ctx Context) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}

	var part *zip.File
	for _, f := range reader.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidContainer, documentPart)
	}

	body, err := readEntry(part)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}

	merged, err := resolve(body, ctx)
	if err != nil {
		return nil, err
	}

	return rewrite(reader, merged)
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// rewrite clones every archive entry in original order, substituting
// the merged document body. Entries other than the body keep their raw
// compressed bytes so the output carries no new timestamps or ids.
func rewrite(reader *zip.Reader, body string) ([]byte, error) {
	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, f := range reader.File {
		if f.Name == documentPart {
			header := f.FileHeader
			header.CRC32 = 0
			header.CompressedSize64 = 0
			header.UncompressedSize64 = 0
			w, err := writer.CreateHeader(&header)
			if err != nil {
				return nil, err
			}
			if _, err := io.WriteString(w, body); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := f.OpenRaw()
		if err != nil {
			return nil, err
		}
		header := f.FileHeader
		w, err := writer.CreateRaw(&header)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(w, raw); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
