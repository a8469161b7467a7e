package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dedpaste/dedpaste/internal/coreerr"
)

// Group is a named set of recipient identifiers (not keys), expanded at
// resolve time by C3. Adapted from the teacher's Vault.Users list
// (internal/config/vault.go) generalized from "users belonging to a
// vault" to "identifiers belonging to a named group".
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// groupFile is the on-disk shape of groups.json: a flat map of name to
// ordered member list, per spec.md §6.
type groupFile map[string][]string

// LoadGroups reads groups.json, returning an empty set if the file does
// not yet exist.
func (s *Store) LoadGroups() (map[string]Group, error) {
	data, err := os.ReadFile(s.ctx.GroupsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Group{}, nil
		}
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}

	var gf groupFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("%w: parsing groups.json: %v", coreerr.ErrStoreIO, err)
	}

	groups := make(map[string]Group, len(gf))
	for name, members := range gf {
		groups[name] = Group{Name: name, Members: members}
	}
	return groups, nil
}

func (s *Store) saveGroups(groups map[string]Group) error {
	gf := make(groupFile, len(groups))
	for name, g := range groups {
		gf[name] = g.Members
	}
	data, err := json.MarshalIndent(gf, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}
	if err := os.WriteFile(s.ctx.GroupsPath(), data, filePerms); err != nil {
		return fmt.Errorf("%w: %v", coreerr.ErrStoreIO, err)
	}
	return nil
}

// PutGroup creates or replaces a group, enforcing the no-recursive-
// expansion invariant of spec.md §3 and §8 ("Group expansion depth"):
// a group's members must not include its own name, and — since the
// resolver only performs single-level expansion — members also must not
// name any *other* existing group, which would silently be left
// unexpanded rather than recursed into.
func (s *Store) PutGroup(name string, members []string) (*Group, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("group %q must have at least one member", name)
	}

	groups, err := s.LoadGroups()
	if err != nil {
		return nil, err
	}

	for _, m := range members {
		if m == name {
			return nil, fmt.Errorf("group %q may not contain itself", name)
		}
		if _, isGroup := groups[m]; isGroup {
			return nil, fmt.Errorf("group %q may not contain another group %q (no recursive expansion)", name, m)
		}
	}

	g := Group{Name: name, Members: members}
	groups[name] = g
	if err := s.saveGroups(groups); err != nil {
		return nil, err
	}
	return &g, nil
}

// RemoveGroup deletes a group by name. Idempotent.
func (s *Store) RemoveGroup(name string) (removed bool, err error) {
	groups, err := s.LoadGroups()
	if err != nil {
		return false, err
	}
	if _, ok := groups[name]; !ok {
		return false, nil
	}
	delete(groups, name)
	if err := s.saveGroups(groups); err != nil {
		return false, err
	}
	return true, nil
}

// GetGroup looks up a single group by name.
func (s *Store) GetGroup(name string) (*Group, bool, error) {
	groups, err := s.LoadGroups()
	if err != nil {
		return nil, false, err
	}
	g, ok := groups[name]
	if !ok {
		return nil, false, nil
	}
	return &g, true, nil
}
