// Package store keeps users, houses, rooms and devices in process memory.
//
// Ids are 1-based and assigned as the current size of a kind's collection plus
// one. Rooms and devices are numbered globally, not per parent. Nothing is ever
// updated or removed, so ids are never reused.
package store

import (
	"sync"

	"golang.org/x/exp/slices"
)

type NotFoundError struct {
	Kind Kind
}

func (e *NotFoundError) Error() string {
	return e.Kind.Title() + " not found"
}

type Store struct {
	mu sync.RWMutex

	users   map[int]Record
	houses  map[int]Record
	rooms   map[int][]Record // by house id
	devices map[int][]Record // by room id

	roomHouse  map[int]int
	deviceRoom map[int]int
}

func New() *Store {
	return &Store{
		users:      map[int]Record{},
		houses:     map[int]Record{},
		rooms:      map[int][]Record{},
		devices:    map[int][]Record{},
		roomHouse:  map[int]int{},
		deviceRoom: map[int]int{},
	}
}

func (s *Store) CreateUser(body []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := NewRecord(User, len(s.users)+1, body)
	if err != nil {
		return Record{}, err
	}
	s.users[rec.ID] = rec
	return rec, nil
}

func (s *Store) User(id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return Record{}, &NotFoundError{Kind: User}
	}
	return rec, nil
}

func (s *Store) CreateHouse(body []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := NewRecord(House, len(s.houses)+1, body)
	if err != nil {
		return Record{}, err
	}
	s.houses[rec.ID] = rec
	return rec, nil
}

func (s *Store) House(id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.houses[id]
	if !ok {
		return Record{}, &NotFoundError{Kind: House}
	}
	return rec, nil
}

// AddRoom appends a room to an existing house. A missing house leaves the
// store untouched, including the room counter.
func (s *Store) AddRoom(houseID int, body []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.houses[houseID]; !ok {
		return Record{}, &NotFoundError{Kind: House}
	}
	rec, err := NewRecord(Room, len(s.roomHouse)+1, body)
	if err != nil {
		return Record{}, err
	}
	s.rooms[houseID] = append(s.rooms[houseID], rec)
	s.roomHouse[rec.ID] = houseID
	return rec, nil
}

// Rooms lists the rooms of a house in creation order. Unknown houses yield an
// empty list.
func (s *Store) Rooms(houseID int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneList(s.rooms[houseID])
}

func (s *Store) Room(id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	houseID, ok := s.roomHouse[id]
	if !ok {
		return Record{}, &NotFoundError{Kind: Room}
	}
	idx := slices.IndexFunc(s.rooms[houseID], func(r Record) bool { return r.ID == id })
	return s.rooms[houseID][idx], nil
}

// AddDevice appends a device to an existing room. A missing room leaves the
// store untouched, including the device counter.
func (s *Store) AddDevice(roomID int, body []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roomHouse[roomID]; !ok {
		return Record{}, &NotFoundError{Kind: Room}
	}
	rec, err := NewRecord(Device, len(s.deviceRoom)+1, body)
	if err != nil {
		return Record{}, err
	}
	s.devices[roomID] = append(s.devices[roomID], rec)
	s.deviceRoom[rec.ID] = roomID
	return rec, nil
}

// Devices lists the devices of a room in creation order. Unknown rooms yield an
// empty list.
func (s *Store) Devices(roomID int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneList(s.devices[roomID])
}

func (s *Store) Device(id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roomID, ok := s.deviceRoom[id]
	if !ok {
		return Record{}, &NotFoundError{Kind: Device}
	}
	idx := slices.IndexFunc(s.devices[roomID], func(r Record) bool { return r.ID == id })
	return s.devices[roomID][idx], nil
}

func (s *Store) Counts() map[Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[Kind]int{
		User:   len(s.users),
		House:  len(s.houses),
		Room:   len(s.roomHouse),
		Device: len(s.deviceRoom),
	}
}

func cloneList(list []Record) []Record {
	if len(list) == 0 {
		return []Record{}
	}
	return slices.Clone(list)
}
