package decoder

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []struct {
			Rows []struct {
				Cells []struct {
					Paragraphs []docxParagraph `xml:"p"`
				} `xml:"tc"`
			} `xml:"tr"`
		} `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

func decodeDocx(_ context.Context, data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, file := range reader.File {
		if file.Name != docxBody {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		var doc docxDocument
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}
		var lines []string
		for _, p := range doc.Body.Paragraphs {
			lines = append(lines, p.text())
		}
		for _, tbl := range doc.Body.Tables {
			for _, row := range tbl.Rows {
				var cells []string
				for _, cell := range row.Cells {
					for _, p := range cell.Paragraphs {
						if txt := p.text(); txt != "" {
							cells = append(cells, txt)
						}
					}
				}
				if len(cells) > 0 {
					lines = append(lines, strings.Join(cells, "\t"))
				}
			}
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	}
	return "", fmt.Errorf("%s not found", docxBody)
}
