package io

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"obesity/pkg/model"
)

var (
	// ErrCorruptArtifact is returned when an artifact file cannot be decoded.
	ErrCorruptArtifact = errors.New("corrupt artifact")
	// ErrVersionMismatch is returned when an artifact was written for a different format or feature schema.
	ErrVersionMismatch = errors.New("artifact version mismatch")
)

const (
	artifactMagic = "obesity-artifact"
	FormatVersion = 1
)

type ArtifactKind string

const (
	PipelineArtifact ArtifactKind = "pipeline"
	EncoderArtifact  ArtifactKind = "label-encoder"
)

// ArtifactHeader precedes the payload of every artifact file.
type ArtifactHeader struct {
	Magic             string
	FormatVersion     int
	Kind              ArtifactKind
	SchemaFingerprint string
	RunID             uuid.UUID
	CreatedAt         time.Time
}

func NewArtifactHeader(kind ArtifactKind, schema *model.Schema, runID uuid.UUID) ArtifactHeader {
	return ArtifactHeader{
		Magic:             artifactMagic,
		FormatVersion:     FormatVersion,
		Kind:              kind,
		SchemaFingerprint: schema.Fingerprint(),
		RunID:             runID,
		CreatedAt:         time.Now().UTC(),
	}
}

func (h ArtifactHeader) check(kind ArtifactKind, schema *model.Schema) error {
	if h.Magic != artifactMagic {
		return fmt.Errorf("%w: not an artifact file", ErrCorruptArtifact)
	}
	if h.Kind != kind {
		return fmt.Errorf("%w: expected %s artifact, found %s", ErrCorruptArtifact, kind, h.Kind)
	}
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: format version %d, expected %d", ErrVersionMismatch, h.FormatVersion, FormatVersion)
	}
	if h.SchemaFingerprint != schema.Fingerprint() {
		return fmt.Errorf("%w: artifact was trained on a different feature schema", ErrVersionMismatch)
	}
	return nil
}

// ArtifactPaths names the two files written by a training run.
type ArtifactPaths struct {
	Pipeline string
	Encoder  string
}

// Artifacts is the loaded, read-only result of a training run.
type Artifacts struct {
	Pipeline *model.Pipeline
	Encoder  *model.LabelEncoder
	Header   ArtifactHeader
}

func SavePipeline(path string, p *model.Pipeline, header ArtifactHeader) error {
	return writeAtomic(path, func(w io.Writer) error {
		return encode(w, header, p)
	})
}

func SaveEncoder(path string, e *model.LabelEncoder, header ArtifactHeader) error {
	return writeAtomic(path, func(w io.Writer) error {
		return encode(w, header, e)
	})
}

// SaveArtifacts writes both artifacts of a training run under a fresh run ID.
// Both files are staged first, so a failed encode leaves the previous pair untouched.
func SaveArtifacts(paths ArtifactPaths, p *model.Pipeline, e *model.LabelEncoder, schema *model.Schema) (uuid.UUID, error) {
	runID := uuid.New()
	pipelineTmp, err := stage(paths.Pipeline, func(w io.Writer) error {
		return encode(w, NewArtifactHeader(PipelineArtifact, schema, runID), p)
	})
	if err != nil {
		return uuid.Nil, err
	}
	defer os.Remove(pipelineTmp)
	encoderTmp, err := stage(paths.Encoder, func(w io.Writer) error {
		return encode(w, NewArtifactHeader(EncoderArtifact, schema, runID), e)
	})
	if err != nil {
		return uuid.Nil, err
	}
	defer os.Remove(encoderTmp)

	// The two renames are not atomic as a pair. If the encoder cannot be moved
	// into place the previous pipeline is restored; a mixed pair left behind by
	// a crash in between is rejected by LoadArtifacts through the run IDs.
	backup, err := backupFile(paths.Pipeline)
	if err != nil {
		return uuid.Nil, err
	}
	if err := os.Rename(pipelineTmp, paths.Pipeline); err != nil {
		removeBackup(backup)
		return uuid.Nil, fmt.Errorf("error saving %s: %w", paths.Pipeline, err)
	}
	if err := os.Rename(encoderTmp, paths.Encoder); err != nil {
		err = fmt.Errorf("error saving %s: %w", paths.Encoder, err)
		return uuid.Nil, errors.Join(err, restoreBackup(backup, paths.Pipeline))
	}
	removeBackup(backup)
	return runID, nil
}

// backupFile hard links an existing file to a hidden name next to it and
// returns that name, or "" when there is nothing to back up.
func backupFile(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	backup := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".bak")
	if err := os.Link(path, backup); err != nil {
		return "", fmt.Errorf("error backing up %s: %w", path, err)
	}
	return backup, nil
}

func restoreBackup(backup, path string) error {
	if backup == "" {
		os.Remove(path)
		return nil
	}
	if err := os.Rename(backup, path); err != nil {
		return fmt.Errorf("error restoring previous %s: %w", path, err)
	}
	return nil
}

func removeBackup(backup string) {
	if backup != "" {
		os.Remove(backup)
	}
}

func LoadPipeline(path string, schema *model.Schema) (*model.Pipeline, ArtifactHeader, error) {
	p := &model.Pipeline{}
	header, err := load(path, PipelineArtifact, schema, p)
	if err != nil {
		return nil, header, err
	}
	if err := p.Check(); err != nil {
		return nil, header, fmt.Errorf("%w: %s: %s", ErrCorruptArtifact, path, err)
	}
	return p, header, nil
}

func LoadEncoder(path string, schema *model.Schema) (*model.LabelEncoder, ArtifactHeader, error) {
	e := &model.LabelEncoder{}
	header, err := load(path, EncoderArtifact, schema, e)
	if err != nil {
		return nil, header, err
	}
	if e.Size() == 0 {
		return nil, header, fmt.Errorf("%w: %s: empty label encoder", ErrCorruptArtifact, path)
	}
	return e, header, nil
}

// LoadArtifacts loads both artifacts and checks that they come from the same training run.
func LoadArtifacts(paths ArtifactPaths, schema *model.Schema) (*Artifacts, error) {
	p, pipelineHeader, err := LoadPipeline(paths.Pipeline, schema)
	if err != nil {
		return nil, err
	}
	e, encoderHeader, err := LoadEncoder(paths.Encoder, schema)
	if err != nil {
		return nil, err
	}
	if pipelineHeader.RunID != encoderHeader.RunID {
		return nil, fmt.Errorf("%w: model run %s and encoder run %s differ", ErrVersionMismatch, pipelineHeader.RunID, encoderHeader.RunID)
	}
	if e.Size() != p.Forest.NumClasses {
		return nil, fmt.Errorf("%w: encoder has %d classes, model has %d", ErrVersionMismatch, e.Size(), p.Forest.NumClasses)
	}
	return &Artifacts{Pipeline: p, Encoder: e, Header: pipelineHeader}, nil
}

func encode(w io.Writer, header ArtifactHeader, payload any) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(header); err != nil {
		return fmt.Errorf("error encoding artifact header: %w", err)
	}
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("error encoding artifact: %w", err)
	}
	return nil
}

func load(path string, kind ArtifactKind, schema *model.Schema, payload any) (ArtifactHeader, error) {
	var header ArtifactHeader
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return header, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return header, fmt.Errorf("error opening artifact %s: %w", path, err)
	}
	defer f.Close()

	decoder := gob.NewDecoder(f)
	if err := decoder.Decode(&header); err != nil {
		return header, fmt.Errorf("%w: %s: %s", ErrCorruptArtifact, path, err)
	}
	if err := header.check(kind, schema); err != nil {
		return header, fmt.Errorf("%s: %w", path, err)
	}
	if err := decoder.Decode(payload); err != nil {
		return header, fmt.Errorf("%w: %s: %s", ErrCorruptArtifact, path, err)
	}
	return header, nil
}

// writeAtomic writes to a temporary file next to path and renames it into
// place, so readers see either the old or the new file.
func writeAtomic(path string, write func(w io.Writer) error) error {
	tmpName, err := stage(path, write)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("error saving %s: %w", path, err)
	}
	return nil
}

// stage writes a synced temporary file in the directory of path and returns its name.
func stage(path string, write func(w io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("error creating output file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	err = write(tmp)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("error saving %s: %w", path, err)
	}
	return tmpName, nil
}
