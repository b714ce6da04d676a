package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"lauschr/internal/apperr"
)

// Report lists the problems found in an RSS document. Errors make a feed
// unusable for podcast clients; warnings do not.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether no errors were found.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns nil for a valid report, otherwise a validation error that
// aggregates every reported error.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	var merr *multierror.Error
	for _, msg := range r.Errors {
		merr = multierror.Append(merr, errors.New(msg))
	}
	return apperr.Wrap(apperr.ErrValidation, component, "validate",
		fmt.Sprintf("%d problem(s) in feed", len(r.Errors)), merr.ErrorOrNil())
}

type parsedDocument struct {
	XMLName xml.Name       `xml:"rss"`
	Channel *parsedChannel `xml:"channel"`
}

type parsedChannel struct {
	Title *string      `xml:"title"`
	Items []parsedItem `xml:"item"`
}

type parsedItem struct {
	Title     *string   `xml:"title"`
	Enclosure *struct{} `xml:"enclosure"`
}

// Validate parses an RSS document and checks the channel title and each
// item's title and enclosure.
func Validate(data []byte) Report {
	report := Report{Errors: []string{}, Warnings: []string{}}

	var doc parsedDocument
	decoder := xml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil {
		var syntaxErr *xml.SyntaxError
		if errors.As(err, &syntaxErr) {
			report.Errors = append(report.Errors, fmt.Sprintf("Line %d: %s", syntaxErr.Line, syntaxErr.Msg))
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("parse: %v", err))
		}
		return report
	}
	if doc.Channel == nil {
		report.Errors = append(report.Errors, "Missing channel")
		return report
	}
	if doc.Channel.Title == nil {
		report.Errors = append(report.Errors, "Missing channel title")
	}
	if len(doc.Channel.Items) == 0 {
		report.Warnings = append(report.Warnings, "Feed has no episodes")
	}
	for i, it := range doc.Channel.Items {
		n := i + 1
		if it.Title == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Episode %d is missing a title", n))
		}
		if it.Enclosure == nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Episode %d has no audio enclosure", n))
		}
	}
	return report
}
