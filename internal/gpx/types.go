// Package gpx reads and writes GPX 1.1 track files.
package gpx

import (
	"encoding/xml"
	"time"
)

const (
	Namespace = "http://www.topografix.com/GPX/1/1"
	Version   = "1.1"
)

// RawXML preserves nested extension blocks without re-parsing them, so
// extensions written by other tools survive a round trip.
type RawXML []byte

func (r RawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(r) == 0 {
		return nil
	}

	type inner struct {
		Content string `xml:",innerxml"`
	}

	return e.EncodeElement(inner{Content: string(r)}, start)
}

func (r *RawXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type inner struct {
		Content string `xml:",innerxml"`
	}

	var data inner
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}

	if len(data.Content) == 0 {
		*r = nil
		return nil
	}

	*r = append((*r)[:0], data.Content...)
	return nil
}

// Point is a track point. Optional elements are pointers so an absent
// element stays absent on write.
type Point struct {
	Lat       float64    `xml:"lat,attr"`
	Lon       float64    `xml:"lon,attr"`
	Elevation *float64   `xml:"ele,omitempty"`
	Time      *time.Time `xml:"time,omitempty"`
	HDOP      *float64   `xml:"hdop,omitempty"`

	Extensions RawXML `xml:"extensions,omitempty"`
}

// Track is a GPX track with segments.
type Track struct {
	Name        string         `xml:"name,omitempty"`
	Description string         `xml:"desc,omitempty"`
	Type        string         `xml:"type,omitempty"`
	Segments    []TrackSegment `xml:"trkseg"`
	Extensions  RawXML         `xml:"extensions,omitempty"`
}

// TrackSegment is a continuous run of points.
type TrackSegment struct {
	Points     []Point `xml:"trkpt"`
	Extensions RawXML  `xml:"extensions,omitempty"`
}

// GPX is the document root.
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr,omitempty"`

	Metadata   *Metadata `xml:"metadata,omitempty"`
	Tracks     []Track   `xml:"trk"`
	Extensions RawXML    `xml:"extensions,omitempty"`
}

// Metadata describes the file.
type Metadata struct {
	Name        string     `xml:"name,omitempty"`
	Description string     `xml:"desc,omitempty"`
	Time        *time.Time `xml:"time,omitempty"`
}
