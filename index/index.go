// Package index writes repodata for a local file channel so an installer can resolve packages from it.
package index

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/pkg-acceptor/archive"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

const (
	RepodataFile  = "repodata.json"
	IndexJSONPath = "info/index.json"
)

// Indexer writes repodata.json for the packages found in a channel directory.
type Indexer interface {
	Index(ctx context.Context, channelRoot string, platform types.Platform) error
}

// Record is one package entry in repodata.json.
type Record struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Subdir      string   `json:"subdir,omitempty"`
	Depends     []string `json:"depends"`
	Constrains  []string `json:"constrains,omitempty"`
	License     string   `json:"license,omitempty"`
	Noarch      any      `json:"noarch,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	MD5         string   `json:"md5"`
	SHA256      string   `json:"sha256"`
	Size        int64    `json:"size"`
}

// Repodata is the content of <subdir>/repodata.json.
type Repodata struct {
	Info            RepodataInfo      `json:"info"`
	Packages        map[string]Record `json:"packages"`
	PackagesConda   map[string]Record `json:"packages.conda"`
	RepodataVersion int               `json:"repodata_version"`
}

type RepodataInfo struct {
	Subdir string `json:"subdir"`
}

var _ Indexer = (*FileIndexer)(nil)

// FileIndexer indexes a channel on the local filesystem.
type FileIndexer struct {
	log log.Logger
}

func NewFileIndexer(logger log.Logger) *FileIndexer {
	if logger == nil {
		logger = log.Root()
	}
	return &FileIndexer{log: logger}
}

// Index writes repodata for the platform subdir and for noarch. Subdirs that do not exist are created empty.
func (x *FileIndexer) Index(ctx context.Context, channelRoot string, platform types.Platform) error {
	subdirs := []types.Platform{types.PlatformNoArch}
	if platform != types.PlatformNoArch {
		subdirs = append(subdirs, platform)
	}
	for _, subdir := range subdirs {
		repodata, err := x.indexSubdir(ctx, filepath.Join(channelRoot, subdir.String()), subdir)
		if err != nil {
			return err
		}
		if err := writeRepodata(filepath.Join(channelRoot, subdir.String(), RepodataFile), repodata); err != nil {
			return err
		}
		x.log.Debug("Indexed channel subdir", "subdir", subdir,
			"packages", len(repodata.Packages), "conda_packages", len(repodata.PackagesConda))
	}
	return nil
}

func (x *FileIndexer) indexSubdir(ctx context.Context, dir string, subdir types.Platform) (*Repodata, error) {
	repodata := &Repodata{
		Info:            RepodataInfo{Subdir: subdir.String()},
		Packages:        map[string]Record{},
		PackagesConda:   map[string]Record{},
		RepodataVersion: 1,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create channel subdir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel subdir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		format, err := types.ArchiveFormatFromPath(name)
		if err != nil {
			continue
		}
		record, err := ReadRecord(ctx, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if record.Subdir == "" {
			record.Subdir = subdir.String()
		}
		switch format {
		case types.FormatConda:
			repodata.PackagesConda[name] = *record
		default:
			repodata.Packages[name] = *record
		}
	}
	return repodata, nil
}

// ReadRecord builds a repodata record from the archive's info/index.json and its file digests.
func ReadRecord(ctx context.Context, archivePath string) (*Record, error) {
	loc, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	raw, err := loc.Locate(ctx, IndexJSONPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", IndexJSONPath, archivePath, err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("invalid %s in %s: %w", IndexJSONPath, archivePath, err)
	}
	if record.Name == "" || record.Version == "" {
		return nil, fmt.Errorf("invalid %s in %s: %w", IndexJSONPath, archivePath, errors.New("name and version are required"))
	}
	if record.Depends == nil {
		record.Depends = []string{}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	sha := sha256.New()
	sum := md5.New()
	size, err := io.Copy(io.MultiWriter(sha, sum), f)
	if err != nil {
		return nil, fmt.Errorf("failed to hash archive: %w", err)
	}
	record.SHA256 = hex.EncodeToString(sha.Sum(nil))
	record.MD5 = hex.EncodeToString(sum.Sum(nil))
	record.Size = size
	return &record, nil
}

func writeRepodata(path string, repodata *Repodata) error {
	data, err := json.MarshalIndent(repodata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode repodata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write repodata: %w", err)
	}
	return nil
}
