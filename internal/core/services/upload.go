package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

func init() {
	// pdfcpu otherwise installs a config directory under the user's home.
	model.ConfigPath = "disable"
}

// inspectedFile is an upload that passed validation
type inspectedFile struct {
	upload    driving.FileUpload
	mimeType  string
	checksum  string
	pageCount int
}

// inspectUploads validates every upload and reports every problem at once
func inspectUploads(uploads []driving.FileUpload, maxBytes int64) ([]inspectedFile, error) {
	var (
		out        = make([]inspectedFile, 0, len(uploads))
		violations []domain.Violation
		tooLarge   = 0
	)

	for i, up := range uploads {
		path := fmt.Sprintf("files[%d]", i)
		if up.Name != "" {
			path = fmt.Sprintf("files[%d](%s)", i, up.Name)
		}

		size := int64(len(up.Content))
		if size == 0 {
			violations = append(violations, domain.Violation{Field: path, Message: "file is empty"})
			continue
		}
		if size > maxBytes {
			violations = append(violations, domain.Violation{
				Field:   path,
				Message: fmt.Sprintf("file is %d bytes; the limit is %d", size, maxBytes),
			})
			tooLarge++
			continue
		}

		detected := mimetype.Detect(up.Content)
		declared := domain.NormalizeMimeType(up.MimeType)
		if declared == "" || declared == "application/octet-stream" {
			declared = domain.NormalizeMimeType(detected.String())
		}
		if !domain.IsSupportedMimeType(declared) {
			violations = append(violations, domain.Violation{
				Field:   path,
				Message: fmt.Sprintf("unsupported file type %q", declared),
			})
			continue
		}
		if mustMatchContent(declared) && !detected.Is(declared) {
			violations = append(violations, domain.Violation{
				Field:   path,
				Message: fmt.Sprintf("content is %s but was declared as %s", detected.String(), declared),
			})
			continue
		}

		pages := 1
		if domain.IsPaginated(declared) {
			n, err := countPDFPages(up.Content)
			if err != nil {
				violations = append(violations, domain.Violation{Field: path, Message: "PDF could not be read: " + err.Error()})
				continue
			}
			if n == 0 {
				violations = append(violations, domain.Violation{Field: path, Message: "no pages found in PDF"})
				continue
			}
			pages = n
		}

		sum := sha256.Sum256(up.Content)
		out = append(out, inspectedFile{
			upload:    up,
			mimeType:  declared,
			checksum:  hex.EncodeToString(sum[:]),
			pageCount: pages,
		})
	}

	if len(violations) == 0 {
		return out, nil
	}
	code := domain.CodeFileValidation
	if tooLarge == len(violations) {
		code = domain.CodeFileTooLarge
	}
	return nil, domain.NewValidationError(code, "uploaded files are invalid", violations)
}

// mustMatchContent reports whether a declared type is checked against the
// sniffed content. Office and text formats sniff unreliably.
func mustMatchContent(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/")
}

// countPDFPages reads the page tree through the cross-reference table, so
// objects superseded by incremental updates and text inside content streams
// are never mistaken for pages.
func countPDFPages(content []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(content), conf)
}
