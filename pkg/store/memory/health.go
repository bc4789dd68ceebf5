package memory

import "context"

// CheckConnectivity always succeeds
func (s *Store) CheckConnectivity(context.Context) error {
	return nil
}
