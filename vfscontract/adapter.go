package vfscontract

import (
	"github.com/archivefs/cartridge"
)

// CartridgeStore adapts a *cartridge.Cartridge to FileStore.
type CartridgeStore struct {
	C *cartridge.Cartridge
}

var _ FileStore = (*CartridgeStore)(nil)

func (s *CartridgeStore) ReadFile(path string) ([]byte, error) {
	return s.C.ReadFile(path)
}

func (s *CartridgeStore) WriteFile(path string, data []byte) error {
	if _, err := s.C.ReadFile(path); err != nil {
		return s.C.CreateFile(path, data)
	}
	return s.C.WriteFile(path, data)
}

func (s *CartridgeStore) Stat(path string) (Stat, bool, error) {
	entries := s.C.ListDir("")
	for _, e := range entries {
		if e.Key == path {
			return Stat{Size: int64(e.Value.Size), ModifiedAt: e.Value.ModifiedAt}, true, nil
		}
	}
	return Stat{}, false, nil
}

func (s *CartridgeStore) DeleteFile(path string) error {
	return s.C.DeleteFile(path)
}

func (s *CartridgeStore) Flush() error {
	return s.C.Flush()
}
