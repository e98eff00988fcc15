package jobservice

import "github.com/arclight-oj/judge/internal/ids"

// FileConf is the sum type place_file accepts: the three ways a
// node's content can be materialized before an execution reads it.
type FileConf interface {
	isFileConf()
}

// FileConfEmptyDirectory requests a fresh empty directory.
type FileConfEmptyDirectory struct{}

func (FileConfEmptyDirectory) isFileConf() {}

// FileConfText requests the content store's blob for ResourceID.
type FileConfText struct {
	ResourceID ids.ResourceId
}

func (FileConfText) isFileConf() {}

// FileConfRuntimeText carries already-resolved content.
type FileConfRuntimeText struct {
	Content string
}

func (FileConfRuntimeText) isFileConf() {}
