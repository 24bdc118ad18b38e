package ingest

import (
	"errors"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Go Blog Mirror</title>
    <item>
      <title>Robust generic functions</title>
      <link>https://example.com/generics</link>
      <description>How to write generic code that holds up.</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    </item>
    <item>
      <title>No link item</title>
      <description>dropped</description>
    </item>
    <item>
      <title>Profile-guided optimization</title>
      <link>https://example.com/pgo</link>
      <description>PGO in the Go toolchain.</description>
      <pubDate>bogus date</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>The Go Blog</title>
  <entry>
    <title>Go 1.25 is released</title>
    <link rel="alternate" href="https://go.dev/blog/go1.25"/>
    <summary>Release notes overview.</summary>
    <updated>2025-08-12T10:00:00Z</updated>
  </entry>
  <entry>
    <title>Linkless entry</title>
    <summary>dropped</summary>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	items, err := ParseFeed([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ParseFeed() = %d items, want 2 (linkless item dropped)", len(items))
	}
	if items[0].Title != "Robust generic functions" {
		t.Errorf("items[0].Title = %q", items[0].Title)
	}
	if items[0].Published.IsZero() {
		t.Error("items[0].Published is zero, want parsed pubDate")
	}
	if !items[1].Published.IsZero() {
		t.Errorf("items[1].Published = %v, want zero for unparseable date", items[1].Published)
	}
}

func TestParseFeedAtom(t *testing.T) {
	items, err := ParseFeed([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ParseFeed() = %d items, want 1", len(items))
	}
	if items[0].Link != "https://go.dev/blog/go1.25" {
		t.Errorf("Link = %q", items[0].Link)
	}
	if items[0].Summary != "Release notes overview." {
		t.Errorf("Summary = %q", items[0].Summary)
	}
	if items[0].Published.IsZero() {
		t.Error("Published is zero, want parsed updated time")
	}
}

func TestParseFeedUnknownFormat(t *testing.T) {
	_, err := ParseFeed([]byte(`<html><body>not a feed</body></html>`))
	if !errors.Is(err, ErrUnknownFeedFormat) {
		t.Errorf("ParseFeed() = %v, want %v", err, ErrUnknownFeedFormat)
	}
}
