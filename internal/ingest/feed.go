package ingest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownFeedFormat indicates the payload is neither RSS 2.0 nor Atom.
var ErrUnknownFeedFormat = errors.New("unknown feed format")

// Item is one entry of a parsed feed.
type Item struct {
	Title     string
	Link      string
	Summary   string
	Published time.Time
}

// rss20 covers RSS 2.0 documents.
type rss20 struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// atomFeed covers Atom 1.0 documents, including go.dev/blog/feed.atom.
type atomFeed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title   string `xml:"title"`
		Links   []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Updated string `xml:"updated"`
	} `xml:"entry"`
}

// ParseFeed decodes an RSS 2.0 or Atom payload into items, newest first as
// published by the feed. Items without a link are dropped.
func ParseFeed(data []byte) ([]Item, error) {
	var rss rss20
	if err := xml.Unmarshal(data, &rss); err == nil && rss.XMLName.Local == "rss" {
		items := make([]Item, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			if it.Link == "" {
				continue
			}
			items = append(items, Item{
				Title:     strings.TrimSpace(it.Title),
				Link:      it.Link,
				Summary:   strings.TrimSpace(it.Description),
				Published: parseFeedTime(it.PubDate),
			})
		}
		return items, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(data, &atom); err == nil && atom.XMLName.Local == "feed" {
		items := make([]Item, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			link := ""
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			if link == "" {
				continue
			}
			summary := e.Summary
			if summary == "" {
				summary = e.Content
			}
			items = append(items, Item{
				Title:     strings.TrimSpace(e.Title),
				Link:      link,
				Summary:   strings.TrimSpace(summary),
				Published: parseFeedTime(e.Updated),
			})
		}
		return items, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownFeedFormat, firstBytes(data, 60))
}

// parseFeedTime tries the formats feeds use in the wild. A zero time means
// the feed gave nothing usable; ingestion still proceeds.
func parseFeedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
