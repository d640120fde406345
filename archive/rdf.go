package archive

import (
	"encoding/xml"
	"time"
)

// rdfResource is MAF:<property> RDF:resource="..."/>, the leaf shape every
// metadata field in a MAFF index.rdf takes.
type rdfResource struct {
	XMLName  xml.Name
	Resource string `xml:"RDF:resource,attr"`
}

type rdfDescription struct {
	XMLName       xml.Name      `xml:"RDF:Description"`
	About         string        `xml:"RDF:about,attr"`
	OriginalURL   rdfResource   `xml:"MAF:originalurl"`
	Title         rdfResource   `xml:"MAF:title"`
	ArchiveTime   rdfResource   `xml:"MAF:archivetime"`
	IndexFileName rdfResource   `xml:"MAF:indexfilename"`
	Charset       rdfResource   `xml:"MAF:charset"`
}

type rdfRoot struct {
	XMLName     xml.Name       `xml:"RDF:RDF"`
	XmlnsMAF    string         `xml:"xmlns:MAF,attr"`
	XmlnsNC     string         `xml:"xmlns:NC,attr"`
	XmlnsRDF    string         `xml:"xmlns:RDF,attr"`
	Description rdfDescription `xml:"RDF:Description"`
}

// archiveTimeFormat matches the original implementation's
// strftime("%a, %d %b %Y %H:%M:%S %z") exactly: Go's RFC1123Z.
const archiveTimeFormat = time.RFC1123Z

// BuildRDF renders a MAFF index.rdf document describing idx, matching the
// field set produced by ParserMaffRDFInfo/ResponseMaffRDFInfo in the
// reference implementation.
func BuildRDF(idx *IndexFile) []byte {
	doc := rdfRoot{
		XmlnsMAF: "http://maf.mozdev.org/metadata-rdf#",
		XmlnsNC:  "http://home.netscape.com/NC-rdf#",
		XmlnsRDF: "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		Description: rdfDescription{
			About:         "urn:root",
			OriginalURL:   resourceOf("MAF:originalurl", idx.OriginalURL),
			Title:         resourceOf("MAF:title", idx.Title),
			ArchiveTime:   resourceOf("MAF:archivetime", time.Now().Format(archiveTimeFormat)),
			IndexFileName: resourceOf("MAF:indexfilename", idx.IndexName),
			Charset:       resourceOf("MAF:charset", idx.Charset),
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		// Marshaling a fixed, known-good struct cannot fail in practice;
		// fall back to a minimal document rather than panic.
		return []byte(`<?xml version="1.0"?><RDF:RDF/>`)
	}

	return append([]byte(xml.Header), out...)
}

func resourceOf(name, value string) rdfResource {
	return rdfResource{XMLName: xml.Name{Local: name}, Resource: value}
}
