// Package cryptosieve triages a source tree down to the files that plausibly
// use cryptography. It is a heuristic, regex-driven pre-filter: it shrinks a
// repository to a small, relevant file set before expensive downstream
// analysis, and makes no claim that a matched pattern is actually invoked on
// a cryptographic code path.
//
// # Pipeline
//
// [Engine.Run] drives one project through a fixed sequence of states:
//
//  1. Acquired: the source (a repository URL or a local directory) is copied
//     into a fresh workspace. The caller's tree is never modified.
//  2. ExtensionFiltered: files outside the extension allow-list are deleted.
//     Ignore-listed directories (node_modules, dist) are left untouched.
//  3. ClosureAugmented: every allow-listed file matching at least one
//     category gets the original contents of its local import closure
//     appended as delimited blocks. Closures are computed over the
//     untouched tree before anything is appended.
//  4. CategoryTrimmed: files matching no category are deleted; survivors
//     are recorded under a new project.
//  5. ASTAttached: each survivor is parsed and its tree is stored.
//  6. CBOMSynthesized (optional): each stored tree is sent to a model to
//     produce a Cryptographic Bill of Materials.
//
// Any fatal error moves the run to Failed and is returned as a [*StageError].
// The workspace is removed exactly once on every exit path.
//
// # Usage
//
//	e, err := cryptosieve.New("cryptosieve.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	rep, err := e.Run(ctx, "https://github.com/editorconfig/editorconfig-core-js.git", cryptosieve.RunOptions{})
//
// # Configuration
//
// The category table, allow-list, ignore-list, import resolution order and
// collaborator settings come from an explicit [config.Config] passed with
// [WithConfig]. There is no process-wide mutable configuration.
package cryptosieve
