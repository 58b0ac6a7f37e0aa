package cryptosieve

import (
	"github.com/jward/cryptosieve/internal/cbom"
	"github.com/jward/cryptosieve/internal/config"
	"github.com/jward/cryptosieve/internal/runtime"
	"github.com/jward/cryptosieve/internal/store"
	"github.com/jward/cryptosieve/internal/workspace"
)

// Public type aliases for internal types used in the Engine API.

type Store = store.Store
type Project = store.Project
type ProjectStats = store.ProjectStats
type File = store.File
type AST = store.AST
type Config = config.Config
type Acquirer = workspace.Acquirer
type Workspace = workspace.Workspace
type ASTExtractor = runtime.Extractor
type Synthesizer = cbom.Synthesizer
type CBOMFailure = cbom.Failure
