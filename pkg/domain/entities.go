package domain

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/scoserv/pkg/attribute"
)

// FileTypeFreesurfer marks subject data stored as a Freesurfer directory tree.
const FileTypeFreesurfer = "FREESURFER-DIRECTORY"

// Entity is the closed union of stored record types. Consumers switch over
// the concrete types: *Subject, *Image, *ImageGroup, *Experiment,
// *FunctionalData and *ModelRun.
type Entity interface {
	Base() *Record
	entity()
}

// DataObject is implemented by entities that own a storage directory.
type DataObject interface {
	Entity
	Dir() string
}

// Subject is an anatomy scan stored as a directory tree.
type Subject struct {
	Record
	Directory string
}

// DataDir is the directory holding the subject's anatomy files.
func (s *Subject) DataDir() string { return filepath.Join(s.Directory, "data") }

// UploadDir is the directory holding the original upload, if any.
func (s *Subject) UploadDir() string { return filepath.Join(s.Directory, "upload") }

// Image is a single stimulus image file.
type Image struct {
	Record
	Directory string
}

// File returns the absolute path of the image file.
func (i *Image) File() string {
	return filepath.Join(i.Directory, i.StringProperty(PropertyFilename))
}

// GroupImage is one entry of an image group.
type GroupImage struct {
	ImageID string `json:"identifier" mapstructure:"identifier"`
	Folder  string `json:"folder" mapstructure:"folder"`
	Name    string `json:"name" mapstructure:"name"`
}

// Path is the folder+name pair that identifies the image within its group.
func (g GroupImage) Path() string {
	return g.Folder + g.Name
}

// NormalizeFolder makes a folder start and end with "/".
func NormalizeFolder(folder string) string {
	folder = path.Clean("/" + folder)
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder
}

// ImageGroup is an ordered collection of images plus the options used when
// presenting them as stimuli. Its directory holds an archive of the images.
type ImageGroup struct {
	Record
	Directory string
	Images    []GroupImage
	Options   map[string]attribute.Attribute
}

// File returns the absolute path of the group's image archive.
func (g *ImageGroup) File() string {
	return filepath.Join(g.Directory, g.StringProperty(PropertyFilename))
}

// ValidateImages rejects empty names and duplicate folder+name pairs.
func ValidateImages(images []GroupImage) error {
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.ImageID == "" || img.Name == "" {
			return fmt.Errorf("%w: image entry requires identifier and name", ErrInvalidProperty)
		}
		key := img.Path()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateImage, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Experiment ties a subject to an image group, optionally with functional data.
type Experiment struct {
	Record
	SubjectID    string
	ImageGroupID string
	FmriID       string
}

// HasFmri reports whether the experiment owns a functional data association.
func (e *Experiment) HasFmri() bool { return e.FmriID != "" }

// FunctionalData is an archive of functional MRI data or model output.
type FunctionalData struct {
	Record
	Directory string
}

// File returns the absolute path of the archive file.
func (f *FunctionalData) File() string {
	return filepath.Join(f.Directory, f.StringProperty(PropertyFilename))
}

// ModelRun is a single execution of a predictive model for an experiment.
type ModelRun struct {
	Record
	Directory    string
	ExperimentID string
	Model        string
	State        RunState
	Arguments    map[string]attribute.Attribute
	ScheduledAt  time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r *Subject) Base() *Record        { return &r.Record }
func (r *Image) Base() *Record          { return &r.Record }
func (r *ImageGroup) Base() *Record     { return &r.Record }
func (r *Experiment) Base() *Record     { return &r.Record }
func (r *FunctionalData) Base() *Record { return &r.Record }
func (r *ModelRun) Base() *Record       { return &r.Record }

func (r *Subject) Dir() string        { return r.Directory }
func (r *Image) Dir() string          { return r.Directory }
func (r *ImageGroup) Dir() string     { return r.Directory }
func (r *FunctionalData) Dir() string { return r.Directory }
func (r *ModelRun) Dir() string       { return r.Directory }

func (*Subject) entity()        {}
func (*Image) entity()          {}
func (*ImageGroup) entity()     {}
func (*Experiment) entity()     {}
func (*FunctionalData) entity() {}
func (*ModelRun) entity()       {}

// KindOf returns the record kind of an entity.
func KindOf(e Entity) Kind {
	switch e.(type) {
	case *Subject:
		return KindSubject
	case *Image:
		return KindImage
	case *ImageGroup:
		return KindImageGroup
	case *Experiment:
		return KindExperiment
	case *FunctionalData:
		return KindFunctionalData
	case *ModelRun:
		return KindModelRun
	default:
		panic(fmt.Sprintf("domain: unknown entity %T", e))
	}
}
