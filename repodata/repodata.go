// Package repodata implements the conda repodata.json wire format.
package repodata

import (
	"bytes"
	"encoding/json"
	"strings"

	errorpkg "github.com/condaops/conda-mirror/error"
)

// FileName is the canonical manifest filename within a subdir.
const FileName = "repodata.json"

// ArchiveType is the type of a conda package archive, determined by the
// filename extension.
type ArchiveType int

const (
	// ArchiveUnknown is a filename that is not a recognized package archive.
	ArchiveUnknown ArchiveType = iota

	// ArchiveTarBz2 is the legacy .tar.bz2 archive format.
	ArchiveTarBz2

	// ArchiveConda is the newer ZIP-based .conda archive format.
	ArchiveConda
)

// ParseArchiveType determines the archive type of given filename.
func ParseArchiveType(filename string) ArchiveType {
	switch {
	case strings.HasSuffix(filename, ".tar.bz2"):
		return ArchiveTarBz2
	case strings.HasSuffix(filename, ".conda"):
		return ArchiveConda
	default:
		return ArchiveUnknown
	}
}

// PackageRecord is the metadata of a single package archive as carried in
// the manifest. The archive filename is the map key in RepoData, not part of
// the record.
type PackageRecord struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Subdir      string   `json:"subdir,omitempty"`
	Depends     []string `json:"depends,omitempty"`
	Constrains  []string `json:"constrains,omitempty"`
	MD5         string   `json:"md5,omitempty"`
	SHA256      string   `json:"sha256,omitempty"`
	Size        int64    `json:"size,omitempty"`
	License     string   `json:"license,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	NoArch      string   `json:"noarch,omitempty"`
}

// NormalizedName returns the package name in its normalized form. Conda
// name normalization is lowercasing.
func (r *PackageRecord) NormalizedName() string {
	return strings.ToLower(r.Name)
}

// RepoData is the parsed repodata.json manifest of one subdir.
type RepoData struct {
	// Info is opaque channel metadata, preserved verbatim.
	Info json.RawMessage `json:"info,omitempty"`

	// Packages maps .tar.bz2 filenames to their records.
	Packages map[string]PackageRecord `json:"packages"`

	// CondaPackages maps .conda filenames to their records.
	CondaPackages map[string]PackageRecord `json:"packages.conda"`

	// Removed is the set of filenames tombstoned upstream, preserved.
	Removed []string `json:"removed,omitempty"`

	// Version is the manifest schema version, preserved.
	Version int `json:"repodata_version,omitempty"`
}

// Parse deserializes a repodata.json manifest. srcURL is used for error
// context only.
func Parse(data []byte, srcURL string) (*RepoData, error) {
	var rd RepoData
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rd); err != nil {
		offset := int64(-1)
		if serr, ok := err.(*json.SyntaxError); ok {
			offset = serr.Offset
		}
		if terr, ok := err.(*json.UnmarshalTypeError); ok {
			offset = terr.Offset
		}
		return nil, &errorpkg.ParseError{URL: srcURL, Offset: offset, Err: err}
	}

	if rd.Packages == nil {
		rd.Packages = map[string]PackageRecord{}
	}
	if rd.CondaPackages == nil {
		rd.CondaPackages = map[string]PackageRecord{}
	}
	return &rd, nil
}

// Marshal serializes the manifest in its stable pretty-printed form. Map
// keys (package filenames) are emitted in sorted order and struct fields in
// declaration order, so identical manifests are byte identical across runs.
func (rd *RepoData) Marshal() ([]byte, error) {
	out := *rd
	if out.Packages == nil {
		out.Packages = map[string]PackageRecord{}
	}
	if out.CondaPackages == nil {
		out.CondaPackages = map[string]PackageRecord{}
	}
	return json.MarshalIndent(&out, "", "  ")
}

// AllPackages merges both manifest partitions into one filename-keyed map.
func (rd *RepoData) AllPackages() map[string]PackageRecord {
	all := make(map[string]PackageRecord, len(rd.Packages)+len(rd.CondaPackages))
	for filename, record := range rd.Packages {
		all[filename] = record
	}
	for filename, record := range rd.CondaPackages {
		all[filename] = record
	}
	return all
}

// Rebuild returns a manifest carrying given filtered package set partitioned
// by archive type, with info, removed and the schema version preserved from
// the receiver.
func (rd *RepoData) Rebuild(kept map[string]PackageRecord) *RepoData {
	out := &RepoData{
		Info:          rd.Info,
		Packages:      map[string]PackageRecord{},
		CondaPackages: map[string]PackageRecord{},
		Removed:       rd.Removed,
		Version:       rd.Version,
	}
	for filename, record := range kept {
		switch ParseArchiveType(filename) {
		case ArchiveTarBz2:
			out.Packages[filename] = record
		case ArchiveConda:
			out.CondaPackages[filename] = record
		}
	}
	return out
}
