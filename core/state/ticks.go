package state

import "fmt"

var tickHeightKey = []byte("tick/height")

// SetTickHeight records the latest tick served by the node's tick source.
func (tx *Tx) SetTickHeight(height uint64) error {
	return tx.KVPut(tickHeightKey, height)
}

// TickHeight returns the stored tick and whether one was recorded.
func (tx *Tx) TickHeight() (uint64, bool, error) {
	var height uint64
	ok, err := tx.KVGet(tickHeightKey, &height)
	if err != nil {
		return 0, false, err
	}
	return height, ok, nil
}

// SaveTickHeight commits height unless a larger tick is already stored.
func SaveTickHeight(m *Manager, height uint64) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	tx := m.Begin()
	defer tx.Discard()
	stored, ok, err := tx.TickHeight()
	if err != nil {
		return err
	}
	if ok && stored >= height {
		return nil
	}
	if err := tx.SetTickHeight(height); err != nil {
		return err
	}
	return tx.Commit()
}
