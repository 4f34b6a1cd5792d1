package bundler

// Metafile is the part of the esbuild metafile the engine reads.
type Metafile struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes int `json:"bytes"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// Stats is written next to the bundle output after every build.
type Stats struct {
	Target      string       `json:"target"`
	Fingerprint string       `json:"fingerprint"`
	Outputs     []OutputStat `json:"outputs"`
	// Scripts lists, per entry point, the scripts a page loads in order.
	Scripts map[string][]string `json:"scripts"`
	// CacheGroups maps a chunk name to the bundled inputs assigned to it.
	CacheGroups map[string][]string `json:"cacheGroups,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type OutputStat struct {
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	Checksum   string `json:"crc64nvme"`
	EntryPoint string `json:"entryPoint,omitempty"`
}
