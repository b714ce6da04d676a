package rss

import (
	"encoding/xml"
	"strings"
)

const (
	namespaceITunes  = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	namespaceContent = "http://purl.org/rss/1.0/modules/content/"
	namespaceAtom    = "http://www.w3.org/2005/Atom"
)

type document struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	ITunesNS  string   `xml:"xmlns:itunes,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	AtomNS    string   `xml:"xmlns:atom,attr"`
	Channel   channel  `xml:"channel"`
}

type channel struct {
	Title          text       `xml:"title"`
	Description    text       `xml:"description"`
	Language       text       `xml:"language"`
	Link           text       `xml:"link"`
	LastBuildDate  text       `xml:"lastBuildDate"`
	Generator      text       `xml:"generator"`
	AtomLink       atomLink   `xml:"atom:link"`
	ITunesAuthor   text       `xml:"itunes:author"`
	ITunesSummary  text       `xml:"itunes:summary"`
	ITunesExplicit text       `xml:"itunes:explicit"`
	ITunesOwner    *owner     `xml:"itunes:owner,omitempty"`
	Image          *image     `xml:"image,omitempty"`
	ITunesImage    *hrefImage `xml:"itunes:image,omitempty"`
	ITunesCategory *category  `xml:"itunes:category,omitempty"`
	Items          []item     `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type owner struct {
	Name  text `xml:"itunes:name"`
	Email text `xml:"itunes:email"`
}

type image struct {
	URL   text `xml:"url"`
	Title text `xml:"title"`
	Link  text `xml:"link"`
}

type hrefImage struct {
	Href string `xml:"href,attr"`
}

type category struct {
	Text string    `xml:"text,attr"`
	Sub  *category `xml:"itunes:category,omitempty"`
}

type item struct {
	Title          text       `xml:"title"`
	Description    text       `xml:"description"`
	GUID           text       `xml:"guid"`
	PubDate        text       `xml:"pubDate,omitempty"`
	ITunesAuthor   text       `xml:"itunes:author,omitempty"`
	ITunesDuration text       `xml:"itunes:duration,omitempty"`
	ITunesExplicit text       `xml:"itunes:explicit"`
	Enclosure      *enclosure `xml:"enclosure,omitempty"`
	ITunesSummary  text       `xml:"itunes:summary,omitempty"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// text is element content that switches to CDATA when it carries markup.
type text string

type cdata struct {
	Value string `xml:",cdata"`
}

func (t text) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	value := stripInvalidXML(string(t))
	if needsCDATA(value) {
		// encoding/xml splits "]]>" across two sections.
		return e.EncodeElement(cdata{Value: value}, start)
	}
	return e.EncodeElement(value, start)
}

// stripInvalidXML drops runes outside the XML 1.0 Char production. CDATA
// sections are written verbatim, so control characters must go before either
// path is chosen.
func stripInvalidXML(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, value)
}

func needsCDATA(value string) bool {
	return strings.ContainsAny(value, "<&") || strings.Contains(value, "]]>")
}

func yesNo(value bool) text {
	if value {
		return "yes"
	}
	return "no"
}
