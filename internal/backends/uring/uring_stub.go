//go:build !linux
// +build !linux

package uring

import "github.com/dfsbench/dfsbench/core"

// Backend is a placeholder on platforms without io_uring; giouring itself
// only targets Linux.
type Backend struct{}

// New returns a placeholder backend; Configure is what actually fails off
// Linux, keeping the registry's factory signature uniform across platforms.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string                       { return "uring" }
func (b *Backend) Configure(*core.OptionBundle) error  { return core.ErrNotSupported }
func (b *Backend) Create(string, core.OpenFlag) (*core.Handle, error) {
	return nil, core.ErrNotSupported
}
func (b *Backend) Open(string, core.OpenFlag) (*core.Handle, error) {
	return nil, core.ErrNotSupported
}
func (b *Backend) Close(*core.Handle) error                  { return core.ErrNotSupported }
func (b *Backend) Delete(string) error                       { return core.ErrNotSupported }
func (b *Backend) Fsync(*core.Handle) error                  { return core.ErrNotSupported }
func (b *Backend) GetFileSize(string) (int64, error)          { return 0, core.ErrNotSupported }
func (b *Backend) Access(string, int) (bool, error)           { return false, core.ErrNotSupported }
func (b *Backend) Mkdir(string, uint32) error                 { return core.ErrNotSupported }
func (b *Backend) Rmdir(string) error                         { return core.ErrNotSupported }
func (b *Backend) Stat(string) (core.StatResult, error)       { return core.StatResult{}, core.ErrNotSupported }
func (b *Backend) Rename(string, string) error                { return core.ErrNotSupported }
func (b *Backend) Mknod(string) error                         { return core.ErrNotSupported }
func (b *Backend) XferSync(*core.Handle, core.XferDir, []byte, int64) (int64, error) {
	return 0, core.ErrNotSupported
}
func (b *Backend) XferSubmit(*core.Handle, core.XferDir, []byte, int64, any, core.XferCallback) (core.Token, error) {
	return 0, core.ErrNotSupported
}
func (b *Backend) Poll(int) (int, error)    { return 0, core.ErrNotSupported }
func (b *Backend) Cancel(core.Token) error  { return core.ErrNotSupported }
func (b *Backend) Shutdown() error          { return nil }
