package diagnostics

import "os/exec"

var lookPath = exec.LookPath

type BinaryStatus struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// DependencyReport describes which playback backends are usable on this host.
// At least one player binary must be present for play commands to work.
type DependencyReport struct {
	MPV           BinaryStatus `json:"mpv"`
	FFplay        BinaryStatus `json:"ffplay"`
	PlayerPresent bool         `json:"player_present"`
}

func DetectDependencies() DependencyReport {
	mpv := detectBinary("mpv")
	ffplay := detectBinary("ffplay")

	return DependencyReport{
		MPV:           mpv,
		FFplay:        ffplay,
		PlayerPresent: mpv.Found || ffplay.Found,
	}
}

func detectBinary(name string) BinaryStatus {
	path, err := lookPath(name)
	if err != nil {
		return BinaryStatus{Found: false}
	}

	return BinaryStatus{
		Found: true,
		Path:  path,
	}
}
