// Package opml reads and writes OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

type document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    head     `xml:"head"`
	Body    body     `xml:"body"`
}

type head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type body struct {
	Outlines []outline `xml:"outline"`
}

type outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []outline `xml:"outline,omitempty"`
}

// Entry is one subscription from an OPML body: a source URL plus the name of
// the group outline it sits under, empty for top-level feeds.
type Entry struct {
	GroupName string
	Title     string
	URL       string
}

// Parse flattens an OPML document into entries. Nested group outlines are
// collapsed onto their top-level group name; outlines without an xmlUrl and
// without children are ignored.
func Parse(r io.Reader) ([]Entry, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode OPML: %w", err)
	}

	var entries []Entry

	var walk func(outlines []outline, groupName string)
	walk = func(outlines []outline, groupName string) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := strings.TrimSpace(o.Title)
				if title == "" {
					title = strings.TrimSpace(o.Text)
				}

				entries = append(entries, Entry{
					GroupName: groupName,
					Title:     title,
					URL:       strings.TrimSpace(o.XMLURL),
				})

				continue
			}

			if len(o.Outlines) == 0 {
				continue
			}

			name := strings.TrimSpace(o.Text)
			if name == "" {
				name = strings.TrimSpace(o.Title)
			}
			if groupName != "" {
				name = groupName
			}

			walk(o.Outlines, name)
		}
	}
	walk(doc.Body.Outlines, "")

	return entries, nil
}

// Export renders entries grouped by group name into an OPML document.
// Top-level entries (empty group name) come before grouped ones; group order
// follows first appearance in entries.
func Export(title string, entries []Entry) ([]byte, error) {
	doc := document{
		Version: "2.0",
		Head: head{
			Title:       title,
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}

	groupIdx := make(map[string]int)
	var groupOutlines []outline

	for _, e := range entries {
		feedOutline := outline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		}

		if e.GroupName == "" {
			doc.Body.Outlines = append(doc.Body.Outlines, feedOutline)

			continue
		}

		idx, ok := groupIdx[e.GroupName]
		if !ok {
			idx = len(groupOutlines)
			groupIdx[e.GroupName] = idx
			groupOutlines = append(groupOutlines, outline{
				Text:  e.GroupName,
				Title: e.GroupName,
			})
		}

		groupOutlines[idx].Outlines = append(groupOutlines[idx].Outlines, feedOutline)
	}

	doc.Body.Outlines = append(doc.Body.Outlines, groupOutlines...)

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode OPML: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}
