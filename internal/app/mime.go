package app

import (
	"log"
	"mime"
)

func init() {
	ensureMimeType(".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
