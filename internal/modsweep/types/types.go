package types

import "encoding/json"

// `json:"..."` tags follow the modlist document's field casing exactly.

// ManifestEntry is one archive record from the modlist's "Archives" collection.
// State is kept undecoded: the modlist schema is externally controlled and the
// installer state is only ever inspected as opaque text.
type ManifestEntry struct {
	Name  string          `json:"Name"`
	Hash  string          `json:"Hash"`
	Size  int64           `json:"Size"`
	State json.RawMessage `json:"State,omitempty"`
}

// Modlist is the decoded top-level document extracted from the manifest container.
type Modlist struct {
	Name     string          `json:"Name,omitempty"`
	Author   string          `json:"Author,omitempty"`
	Version  string          `json:"Version,omitempty"`
	Archives []ManifestEntry `json:"Archives"`
}

// DownloadMetadata is the "download_metadata" object from the manifest's own
// sidecar document, used to cross-check the container on disk.
type DownloadMetadata struct {
	Size             int64 `json:"Size"`
	NumberOfArchives int   `json:"NumberOfArchives"`
}

// ManifestMeta is the optional <modlist>.meta.json document.
type ManifestMeta struct {
	DownloadMetadata DownloadMetadata `json:"download_metadata"`
}

// Flag is a tri-state boolean for sidecar metadata. A missing key must stay
// distinguishable from an explicit "false": deletion policy treats them
// differently.
type Flag int

const (
	FlagUnknown Flag = iota
	FlagFalse
	FlagTrue
)

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "?"
	}
}

// Sidecar holds the decoded install/removal state read from an archive's
// companion .meta file.
type Sidecar struct {
	Path      string
	Installed Flag
	Removed   Flag
}

// Archive is one candidate file discovered in the downloads directory.
type Archive struct {
	Path        string // absolute
	Name        string // filename component, join key against ManifestEntry.Name
	Size        int64
	SidecarPath string
	Keep        bool

	hash   string
	hashed bool
}

// Hash returns the archive's content fingerprint, computing it on first use
// and memoizing it for the rest of the run. hashFn is typically lib.HashFile.
func (a *Archive) Hash(hashFn func(string) (string, error)) (string, error) {
	if a.hashed {
		return a.hash, nil
	}
	h, err := hashFn(a.Path)
	if err != nil {
		return "", err
	}
	a.hash = h
	a.hashed = true
	return h, nil
}

// Hashed reports whether the fingerprint has been computed. Tests use this to
// verify that name-matched archives are never hashed.
func (a *Archive) Hashed() bool {
	return a.hashed
}

// Report is the accumulated outcome of one reconciliation run. All counts and
// byte totals are identical between a dry run and a real run over the same
// inputs.
type Report struct {
	DryRun bool

	ManifestEntries int
	ArchivesFound   int

	Referenced     int
	ReferencedSize int64

	// Manifest entries with no archive on disk, game-file-sourced entries
	// excluded. Size is the manifest's declared size, not an on-disk size.
	Missing     int
	MissingSize int64

	Unreferenced     int
	UnreferencedSize int64

	// Deleted counts flagged-for-deletion archives in a dry run.
	Deleted     int
	DeletedSize int64

	Refused     int
	RefusedSize int64

	Ambiguous     int
	AmbiguousSize int64
}
