package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Parse reads and parses a GPX file.
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open gpx: %w", err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader parses GPX from r, filling in the version and namespace when
// the document omits them.
func ParseReader(r io.Reader) (*GPX, error) {
	decoder := xml.NewDecoder(r)

	var doc GPX
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	if doc.XMLNS == "" {
		doc.XMLNS = Namespace
	}
	if doc.Version == "" {
		doc.Version = Version
	}

	return &doc, nil
}

// WriteToWriter writes the document with an XML header.
func (g *GPX) WriteToWriter(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	if err := encoder.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FlattenPoints returns all points from all tracks and segments in order.
func (g *GPX) FlattenPoints() []Point {
	var points []Point
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}
	return points
}
