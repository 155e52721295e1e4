package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Writer exports run records under <output_dir>/<target dir>/<run id>.<ext>
type Writer struct {
	outputDir     string
	writeYAML     bool
	writeMarkdown bool
	writeHTML     bool
	log           *logrus.Entry
}

// NewWriter creates a Writer from the validated application config
func NewWriter(cfg *config.AppConfig, log *logrus.Entry) *Writer {
	return &Writer{
		outputDir:     cfg.OutputDir,
		writeYAML:     cfg.WriteYAML,
		writeMarkdown: cfg.WriteMarkdown || cfg.WriteHTML,
		writeHTML:     cfg.WriteHTML,
		log:           log,
	}
}

// Dir returns the directory exports for target land in
func (w *Writer) Dir(target string) string {
	return filepath.Join(w.outputDir, utils.TargetDirName(target))
}

// Write exports rec in every enabled format and returns the paths written
func (w *Writer) Write(rec *models.RunRecord) ([]string, error) {
	dir := w.Dir(rec.Target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	base := filepath.Join(dir, utils.SanitizeFilename(rec.ID))

	var written []string
	write := func(ext string, data []byte) error {
		path := base + ext
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, path, err)
		}
		written = append(written, path)
		return nil
	}

	jsonData, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return written, fmt.Errorf("%w: encoding run json: %w", utils.ErrParsing, err)
	}
	if err := write(".json", jsonData); err != nil {
		return written, err
	}

	if w.writeYAML {
		yamlData, err := yaml.Marshal(rec)
		if err != nil {
			return written, fmt.Errorf("%w: encoding run yaml: %w", utils.ErrParsing, err)
		}
		if err := write(".yaml", yamlData); err != nil {
			return written, err
		}
	}

	if w.writeMarkdown {
		md := RenderMarkdown(rec)
		if err := write(".md", []byte(md)); err != nil {
			return written, err
		}
		if w.writeHTML {
			page, err := RenderHTML(md, "Recon run "+rec.ID)
			if err != nil {
				return written, err
			}
			if err := write(".html", page); err != nil {
				return written, err
			}
		}
	}

	w.log.WithFields(logrus.Fields{"target": rec.Target, "files": len(written)}).Debug("Run exported")
	return written, nil
}

// RenderHTML converts a Markdown summary into a standalone HTML page
func RenderHTML(md, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("%w: rendering html: %w", utils.ErrParsing, err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(html.EscapeString(title))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}
