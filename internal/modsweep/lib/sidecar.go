package lib

import (
	"fmt"
	"os"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/ini.v1"

	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// sidecarSection is the INI section holding the install/removal flags.
const sidecarSection = "General"

// ReadSidecar decodes an archive's companion .meta file. The format is a
// loose key/value text file with no declared encoding, so the charset is
// detected heuristically before the INI parse. The installed and removed
// flags default to FlagUnknown when the key (or the whole section) is absent;
// an explicit non-"true" value decodes to FlagFalse.
//
// Any failure — unreadable file, undetectable or undecodable charset,
// unparsable INI — is returned as an error. The caller treats that as fatal:
// guessing metadata on a deletion decision path is not acceptable.
func ReadSidecar(path string) (types.Sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Sidecar{}, fmt.Errorf("could not read sidecar: %w", err)
	}

	text, err := decodeText(raw)
	if err != nil {
		return types.Sidecar{}, fmt.Errorf("could not decode sidecar %s: %w", path, err)
	}

	cfg, err := ini.Load(text)
	if err != nil {
		return types.Sidecar{}, fmt.Errorf("could not parse sidecar %s: %w", path, err)
	}

	sc := types.Sidecar{
		Path:      path,
		Installed: types.FlagUnknown,
		Removed:   types.FlagUnknown,
	}

	section := cfg.Section(sidecarSection)
	if section.HasKey("installed") {
		sc.Installed = flagFromValue(section.Key("installed").String())
	}
	if section.HasKey("removed") {
		sc.Removed = flagFromValue(section.Key("removed").String())
	}

	return sc, nil
}

func flagFromValue(value string) types.Flag {
	if value == "true" {
		return types.FlagTrue
	}
	return types.FlagFalse
}

// decodeText detects the charset of raw and converts it to UTF-8. Detection
// is best-effort and only a hint; if the detected charset has no registered
// decoder the error propagates instead of silently assuming a fixed encoding.
func decodeText(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return nil, fmt.Errorf("charset detection failed: %w", err)
	}

	enc, err := ianaindex.IANA.Encoding(result.Charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("no decoder for detected charset %q", result.Charset)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding as %s failed: %w", result.Charset, err)
	}
	return decoded, nil
}
