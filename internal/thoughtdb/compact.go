package thoughtdb

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mitool/mi/internal/storage"
)

// ManifestKind identifies compaction manifests on disk.
const ManifestKind = "mi.thoughtdb.compaction_manifest"

// ArchiveReport describes one log's gzip backup.
type ArchiveReport struct {
	Path          string `json:"path"`
	Status        string `json:"status"` // archived, plan, skip
	Reason        string `json:"reason,omitempty"`
	ArchivePath   string `json:"archive_path,omitempty"`
	OriginalBytes int64  `json:"original_bytes,omitempty"`
	GzipBytes     int64  `json:"gzip_bytes,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
}

// WriteReport describes one log's compacted rewrite.
type WriteReport struct {
	Path   string `json:"path"`
	Status string `json:"status"` // written, plan
	Lines  int    `json:"lines"`
	Bytes  int    `json:"bytes"`
}

// CompactStats summarizes how much one log shrank.
type CompactStats struct {
	InputLines  int `json:"input_lines"`
	OutputLines int `json:"output_lines"`
	Creates     int `json:"creates,omitempty"`
	Retracts    int `json:"retracts,omitempty"`
	UniqueKeys  int `json:"unique_keys,omitempty"`
}

// FileReport groups the archive, stats, and rewrite for one log.
type FileReport struct {
	Archive ArchiveReport `json:"archive"`
	Stats   CompactStats  `json:"compact_stats"`
	Write   WriteReport   `json:"write"`
}

// CompactReport is the full audit of one compaction run.
type CompactReport struct {
	DryRun          bool       `json:"dry_run"`
	Scope           Scope      `json:"scope"`
	ArchiveDir      string     `json:"archive_dir"`
	Claims          FileReport `json:"claims"`
	Edges           FileReport `json:"edges"`
	Nodes           FileReport `json:"nodes"`
	SnapshotPath    string     `json:"snapshot_path"`
	SnapshotDeleted bool       `json:"snapshot_deleted"`
	ManifestPath    string     `json:"manifest_path,omitempty"`
}

type manifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

type manifest struct {
	Kind    string                   `json:"kind"`
	Version string                   `json:"version"`
	TS      string                   `json:"ts"`
	Scope   Scope                    `json:"scope"`
	Files   map[string]manifestEntry `json:"files"`
}

// CompactScope rewrites one scope's logs into their minimal equivalent
// form: last write per claim/node id plus the surviving retractions, and
// the last edge record per (type, from, to) key. The originals are
// archived as gzip under archive/<stamp>/ first, the view snapshot is
// deleted so the next load replays the compacted logs, and a manifest
// with content hashes is written alongside the archive. Dry-run computes
// the full report without touching any file.
func CompactScope(env Env, scope Scope, dryRun bool) (*CompactReport, error) {
	scope = NormalizeScope(scope)
	claimsPath := env.ClaimsPath(scope)
	edgesPath := env.EdgesPath(scope)
	nodesPath := env.NodesPath(scope)
	snapshotPath := env.SnapshotPath(scope)

	stamp := storage.FilenameSafeTS(storage.NowRFC3339())
	archiveDir := filepath.Join(filepath.Dir(claimsPath), "archive", stamp)

	claimRows, claimStats, err := compactClaimsLog(claimsPath)
	if err != nil {
		return nil, fmt.Errorf("compacting %s: %w", claimsPath, err)
	}
	edgeRows, edgeStats, err := compactEdgesLog(edgesPath)
	if err != nil {
		return nil, fmt.Errorf("compacting %s: %w", edgesPath, err)
	}
	nodeRows, nodeStats, err := compactNodesLog(nodesPath)
	if err != nil {
		return nil, fmt.Errorf("compacting %s: %w", nodesPath, err)
	}

	rep := &CompactReport{
		DryRun:       dryRun,
		Scope:        scope,
		ArchiveDir:   archiveDir,
		SnapshotPath: snapshotPath,
	}

	// Archive before rewriting so the originals stay recoverable.
	rep.Claims.Archive = archiveGzip(claimsPath, filepath.Join(archiveDir, "claims.jsonl.gz"), dryRun)
	rep.Edges.Archive = archiveGzip(edgesPath, filepath.Join(archiveDir, "edges.jsonl.gz"), dryRun)
	rep.Nodes.Archive = archiveGzip(nodesPath, filepath.Join(archiveDir, "nodes.jsonl.gz"), dryRun)
	rep.Claims.Stats = claimStats
	rep.Edges.Stats = edgeStats
	rep.Nodes.Stats = nodeStats

	if rep.Claims.Write, err = rewriteLog(claimsPath, claimRows, dryRun); err != nil {
		return nil, err
	}
	if rep.Edges.Write, err = rewriteLog(edgesPath, edgeRows, dryRun); err != nil {
		return nil, err
	}
	if rep.Nodes.Write, err = rewriteLog(nodesPath, nodeRows, dryRun); err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(snapshotPath); statErr == nil {
		if dryRun {
			rep.SnapshotDeleted = true
		} else if rmErr := os.Remove(snapshotPath); rmErr == nil {
			rep.SnapshotDeleted = true
		}
	}

	if !dryRun {
		man := manifest{
			Kind:    ManifestKind,
			Version: Version,
			TS:      storage.NowRFC3339(),
			Scope:   scope,
			Files: map[string]manifestEntry{
				"claims": {Path: claimsPath, SHA256: sha256File(claimsPath)},
				"edges":  {Path: edgesPath, SHA256: sha256File(edgesPath)},
				"nodes":  {Path: nodesPath, SHA256: sha256File(nodesPath)},
			},
		}
		manPath := filepath.Join(archiveDir, "manifest.json")
		if err := storage.WriteJSONAtomic(manPath, man); err == nil {
			rep.ManifestPath = manPath
		}
	}
	return rep, nil
}

// compactClaimsLog keeps the last claim record per id, ordered by
// (asserted_ts, claim_id), followed by the last retraction per id in
// original log order. Unknown kinds are an error: compaction must not
// silently drop records it does not understand.
func compactClaimsLog(path string) ([][]byte, CompactStats, error) {
	claimsByID := map[string]*Claim{}
	type lastRetract struct {
		idx int
		rec *ClaimRetract
	}
	retracts := map[string]lastRetract{}

	total := 0
	idx := -1
	err := storage.IterJSONL(path, func(line []byte) error {
		total++
		idx++
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		switch r := rec.(type) {
		case *Claim:
			if r.ClaimID != "" {
				claimsByID[r.ClaimID] = r
			}
		case *ClaimRetract:
			if r.ClaimID != "" {
				retracts[r.ClaimID] = lastRetract{idx: idx, rec: r}
			}
		default:
			return fmt.Errorf("unexpected record kind %q in claims log", rec.RecordKind())
		}
		return nil
	})
	if err != nil {
		return nil, CompactStats{}, err
	}

	creates := make([]*Claim, 0, len(claimsByID))
	for _, c := range claimsByID {
		creates = append(creates, c)
	}
	sort.Slice(creates, func(i, j int) bool {
		if creates[i].AssertedTS != creates[j].AssertedTS {
			return creates[i].AssertedTS < creates[j].AssertedTS
		}
		return creates[i].ClaimID < creates[j].ClaimID
	})
	ordered := make([]lastRetract, 0, len(retracts))
	for _, lr := range retracts {
		ordered = append(ordered, lr)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].idx < ordered[j].idx })

	rows := make([][]byte, 0, len(creates)+len(ordered))
	for _, c := range creates {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, CompactStats{}, err
		}
		rows = append(rows, b)
	}
	for _, lr := range ordered {
		b, err := json.Marshal(lr.rec)
		if err != nil {
			return nil, CompactStats{}, err
		}
		rows = append(rows, b)
	}
	stats := CompactStats{
		InputLines:  total,
		OutputLines: len(rows),
		Creates:     len(creates),
		Retracts:    len(ordered),
	}
	return rows, stats, nil
}

func compactNodesLog(path string) ([][]byte, CompactStats, error) {
	nodesByID := map[string]*Node{}
	type lastRetract struct {
		idx int
		rec *NodeRetract
	}
	retracts := map[string]lastRetract{}

	total := 0
	idx := -1
	err := storage.IterJSONL(path, func(line []byte) error {
		total++
		idx++
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		switch r := rec.(type) {
		case *Node:
			if r.NodeID != "" {
				nodesByID[r.NodeID] = r
			}
		case *NodeRetract:
			if r.NodeID != "" {
				retracts[r.NodeID] = lastRetract{idx: idx, rec: r}
			}
		default:
			return fmt.Errorf("unexpected record kind %q in nodes log", rec.RecordKind())
		}
		return nil
	})
	if err != nil {
		return nil, CompactStats{}, err
	}

	creates := make([]*Node, 0, len(nodesByID))
	for _, n := range nodesByID {
		creates = append(creates, n)
	}
	sort.Slice(creates, func(i, j int) bool {
		if creates[i].AssertedTS != creates[j].AssertedTS {
			return creates[i].AssertedTS < creates[j].AssertedTS
		}
		return creates[i].NodeID < creates[j].NodeID
	})
	ordered := make([]lastRetract, 0, len(retracts))
	for _, lr := range retracts {
		ordered = append(ordered, lr)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].idx < ordered[j].idx })

	rows := make([][]byte, 0, len(creates)+len(ordered))
	for _, n := range creates {
		b, err := json.Marshal(n)
		if err != nil {
			return nil, CompactStats{}, err
		}
		rows = append(rows, b)
	}
	for _, lr := range ordered {
		b, err := json.Marshal(lr.rec)
		if err != nil {
			return nil, CompactStats{}, err
		}
		rows = append(rows, b)
	}
	stats := CompactStats{
		InputLines:  total,
		OutputLines: len(rows),
		Creates:     len(creates),
		Retracts:    len(ordered),
	}
	return rows, stats, nil
}

// compactEdgeKey dedups edges by semantic key when complete, falling
// back to edge id, then position, so malformed records survive intact.
func compactEdgeKey(e *Edge, idx int) string {
	if e.EdgeType != "" && e.FromID != "" && e.ToID != "" {
		return EdgeKey(e.EdgeType, e.FromID, e.ToID)
	}
	if e.EdgeID != "" {
		return "edge_id:" + e.EdgeID
	}
	return fmt.Sprintf("idx:%d", idx)
}

// compactEdgesLog keeps the last record per edge key, preserving the
// order of last occurrence.
func compactEdgesLog(path string) ([][]byte, CompactStats, error) {
	type entry struct {
		idx int
		rec *Edge
	}
	var entries []entry
	lastIndex := map[string]int{}

	total := 0
	idx := -1
	err := storage.IterJSONL(path, func(line []byte) error {
		total++
		idx++
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		e, ok := rec.(*Edge)
		if !ok {
			return fmt.Errorf("unexpected record kind %q in edges log", rec.RecordKind())
		}
		entries = append(entries, entry{idx: idx, rec: e})
		lastIndex[compactEdgeKey(e, idx)] = idx
		return nil
	})
	if err != nil {
		return nil, CompactStats{}, err
	}

	rows := make([][]byte, 0, len(lastIndex))
	for _, ent := range entries {
		if lastIndex[compactEdgeKey(ent.rec, ent.idx)] != ent.idx {
			continue
		}
		b, err := json.Marshal(ent.rec)
		if err != nil {
			return nil, CompactStats{}, err
		}
		rows = append(rows, b)
	}
	stats := CompactStats{
		InputLines:  total,
		OutputLines: len(rows),
		UniqueKeys:  len(lastIndex),
	}
	return rows, stats, nil
}

func rewriteLog(path string, rows [][]byte, dryRun bool) (WriteReport, error) {
	if dryRun {
		bytes := 0
		for _, r := range rows {
			bytes += len(r) + 1
		}
		return WriteReport{Path: path, Status: "plan", Lines: len(rows), Bytes: bytes}, nil
	}
	lines, bytes, err := storage.WriteJSONLAtomic(path, rows)
	if err != nil {
		return WriteReport{}, fmt.Errorf("rewriting %s: %w", path, err)
	}
	return WriteReport{Path: path, Status: "written", Lines: lines, Bytes: bytes}, nil
}

func archiveGzip(src, destGz string, dryRun bool) ArchiveReport {
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return ArchiveReport{Path: src, Status: "skip", Reason: "missing"}
	}
	if _, err := os.Stat(destGz); err == nil {
		return ArchiveReport{Path: src, Status: "skip", Reason: "archive_exists", ArchivePath: destGz}
	}
	if dryRun {
		return ArchiveReport{Path: src, Status: "plan", ArchivePath: destGz, OriginalBytes: info.Size()}
	}

	if err := storage.EnsureDir(filepath.Dir(destGz)); err != nil {
		return ArchiveReport{Path: src, Status: "skip", Reason: "mkdir_failed"}
	}
	in, err := os.Open(src)
	if err != nil {
		return ArchiveReport{Path: src, Status: "skip", Reason: "open_failed"}
	}
	defer in.Close()

	out, err := os.Create(destGz)
	if err != nil {
		return ArchiveReport{Path: src, Status: "skip", Reason: "create_failed"}
	}
	defer out.Close()

	h := sha256.New()
	gz := gzip.NewWriter(out)
	written, err := io.Copy(io.MultiWriter(h, gz), in)
	if err != nil {
		gz.Close()
		return ArchiveReport{Path: src, Status: "skip", Reason: "copy_failed"}
	}
	if err := gz.Close(); err != nil {
		return ArchiveReport{Path: src, Status: "skip", Reason: "gzip_close_failed"}
	}

	gzBytes := int64(0)
	if gi, err := os.Stat(destGz); err == nil {
		gzBytes = gi.Size()
	}
	return ArchiveReport{
		Path:          src,
		Status:        "archived",
		ArchivePath:   destGz,
		OriginalBytes: written,
		GzipBytes:     gzBytes,
		SHA256:        hex.EncodeToString(h.Sum(nil)),
	}
}

func sha256File(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
