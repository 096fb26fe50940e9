package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// FileNotFoundError reports a logical path that no search path resolves.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("couldn't find file '%s'", e.Path)
}

// ContentTypeMismatchError reports a path whose own extension declares a
// different content type than the one requested.
type ContentTypeMismatchError struct {
	Path        string
	ContentType string
	Want        string
}

func (e *ContentTypeMismatchError) Error() string {
	return fmt.Sprintf("%s is '%s', not '%s'", e.Path, e.ContentType, e.Want)
}

// FileOutsidePathsError reports a pathname that is not under any search path.
type FileOutsidePathsError struct {
	Pathname string
	Paths    []string
}

func (e *FileOutsidePathsError) Error() string {
	return fmt.Sprintf("%s isn't in paths: %s", e.Pathname, strings.Join(e.Paths, ", "))
}

// DirectiveArgumentError reports a directive given an unusable argument.
type DirectiveArgumentError struct {
	Directive string
	Arg       string
	Reason    string
}

func (e *DirectiveArgumentError) Error() string {
	return fmt.Sprintf("%s argument must be %s (got %q)", e.Directive, e.Reason, e.Arg)
}

// DuplicateDirectiveError reports a directive that may only appear once.
type DuplicateDirectiveError struct {
	Directive string
}

func (e *DuplicateDirectiveError) Error() string {
	return fmt.Sprintf("%s can only be called once per source file", e.Directive)
}

// AssetNotCompiledError reports bundle content read before Compile succeeded.
type AssetNotCompiledError struct {
	LogicalPath string
}

func (e *AssetNotCompiledError) Error() string {
	return fmt.Sprintf("asset %s has not been compiled", e.LogicalPath)
}

// ProcessorError annotates a failure inside a processor chain with the file
// being processed and, when known, the source line.
type ProcessorError struct {
	Pathname  string
	Line      int
	Processor string
	Err       error
}

func (e *ProcessorError) Error() string {
	location := e.Pathname
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", e.Pathname, e.Line)
	}
	if e.Processor != "" {
		return fmt.Sprintf("%v\n  (in %s, %s)", e.Err, location, e.Processor)
	}
	return fmt.Sprintf("%v\n  (in %s)", e.Err, location)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// ImmutableIndexError reports a mutation attempted on an Index snapshot.
type ImmutableIndexError struct {
	Op string
}

func (e *ImmutableIndexError) Error() string {
	return fmt.Sprintf("cannot %s: index is immutable, mutate the environment instead", e.Op)
}

// CircularDependencyError reports a require chain that leads back to a file
// already being built.
type CircularDependencyError struct {
	// Path is the chain of pathnames, ending with the repeated one.
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

// UnserializeError reports a cache entry that cannot be turned back into an
// asset. Callers treat it as a cache miss.
type UnserializeError struct {
	Pathname string
	Reason   string
}

func (e *UnserializeError) Error() string {
	return fmt.Sprintf("cannot restore %s from cache: %s", e.Pathname, e.Reason)
}

// annotate wraps err with the pathname and line unless it already carries
// an annotation from a nested file.
func annotate(err error, pathname string, line int, processor string) error {
	var pe *ProcessorError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcessorError{Pathname: pathname, Line: line, Processor: processor, Err: err}
}

// IsFileNotFound returns true if err is or wraps a FileNotFoundError.
func IsFileNotFound(err error) bool {
	var target *FileNotFoundError
	return errors.As(err, &target)
}

// IsContentTypeMismatch returns true if err is or wraps a ContentTypeMismatchError.
func IsContentTypeMismatch(err error) bool {
	var target *ContentTypeMismatchError
	return errors.As(err, &target)
}

// IsDirectiveArgument returns true if err is or wraps a DirectiveArgumentError.
func IsDirectiveArgument(err error) bool {
	var target *DirectiveArgumentError
	return errors.As(err, &target)
}

// IsDuplicateDirective returns true if err is or wraps a DuplicateDirectiveError.
func IsDuplicateDirective(err error) bool {
	var target *DuplicateDirectiveError
	return errors.As(err, &target)
}

// IsNotCompiled returns true if err is or wraps an AssetNotCompiledError.
func IsNotCompiled(err error) bool {
	var target *AssetNotCompiledError
	return errors.As(err, &target)
}

// IsImmutableIndex returns true if err is or wraps an ImmutableIndexError.
func IsImmutableIndex(err error) bool {
	var target *ImmutableIndexError
	return errors.As(err, &target)
}

// IsCircularDependency returns true if err is or wraps a CircularDependencyError.
func IsCircularDependency(err error) bool {
	var target *CircularDependencyError
	return errors.As(err, &target)
}
