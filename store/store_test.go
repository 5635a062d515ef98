package store

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		body    string
		want    string
		wantErr bool
	}{
		{"object", User, `{"name":"Alice","email":"alice@example.com"}`, `{"user_id":3,"name":"Alice","email":"alice@example.com"}`, false},
		{"empty object", House, `{}`, `{"house_id":3}`, false},
		{"order kept", Room, `{"z":1,"a":[1,2],"m":{"k":null}}`, `{"room_id":3,"z":1,"a":[1,2],"m":{"k":null}}`, false},
		{"id member dropped", Device, `{"device_id":99,"device_name":"Lamp"}`, `{"device_id":3,"device_name":"Lamp"}`, false},
		{"repeated member", Room, `{"a":1,"b":2,"a":3}`, `{"room_id":3,"a":3,"b":2}`, false},
		{"escaped repeat", User, `{"n\u0061me":"x","name":"y"}`, `{"user_id":3,"n\u0061me":"y"}`, false},
		{"invalid utf8", User, "{\"name\":\"\xff\xfe\"}", "", true},
		{"array", User, `[1,2]`, "", true},
		{"string", User, `"alice"`, "", true},
		{"malformed", User, `{"name":`, "", true},
		{"empty", User, ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecord(tt.kind, 3, []byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBody) {
					t.Fatalf("NewRecord(%q) error = %v, want ErrInvalidBody", tt.body, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRecord(%q) unexpected error: %v", tt.body, err)
			}
			got, err := json.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKindTitle(t *testing.T) {
	if got := Device.Title(); got != "Device" {
		t.Errorf("Device.Title() = %q", got)
	}
	if got := Room.IDKey(); got != "room_id" {
		t.Errorf("Room.IDKey() = %q", got)
	}
}

func TestStore_UserIDsAreSequential(t *testing.T) {
	s := New()
	for want := 1; want <= 3; want++ {
		rec, err := s.CreateUser([]byte(`{"name":"u"}`))
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if rec.ID != want {
			t.Errorf("id = %d, want %d", rec.ID, want)
		}
	}

	rec, err := s.User(2)
	if err != nil {
		t.Fatalf("User(2): %v", err)
	}
	if rec.Get("user_id").Int() != 2 {
		t.Errorf("user_id = %v", rec.Get("user_id"))
	}

	_, err = s.User(999)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != User {
		t.Fatalf("User(999) error = %v, want user NotFoundError", err)
	}
	if err.Error() != "User not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestStore_InvalidBodyDoesNotConsumeID(t *testing.T) {
	s := New()
	if _, err := s.CreateHouse([]byte(`nope`)); !errors.Is(err, ErrInvalidBody) {
		t.Fatalf("CreateHouse error = %v", err)
	}
	rec, err := s.CreateHouse([]byte(`{"address":"123 Main St"}`))
	if err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("id = %d, want 1", rec.ID)
	}
}

func TestStore_AddRoomMissingHouse(t *testing.T) {
	s := New()
	_, err := s.AddRoom(1, []byte(`{"room_name":"Kitchen"}`))
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != House {
		t.Fatalf("AddRoom error = %v, want house NotFoundError", err)
	}
	if n := s.Counts()[Room]; n != 0 {
		t.Fatalf("room count = %d after failed add", n)
	}

	if _, err := s.CreateHouse([]byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	rec, err := s.AddRoom(1, []byte(`{"room_name":"Kitchen"}`))
	if err != nil {
		t.Fatalf("AddRoom: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("room id = %d, want 1", rec.ID)
	}
}

func TestStore_RoomIDsAreGlobal(t *testing.T) {
	s := New()
	s.CreateHouse([]byte(`{}`))
	s.CreateHouse([]byte(`{}`))

	r1, _ := s.AddRoom(1, []byte(`{"room_name":"A"}`))
	r2, _ := s.AddRoom(2, []byte(`{"room_name":"B"}`))
	r3, _ := s.AddRoom(1, []byte(`{"room_name":"C"}`))
	if r1.ID != 1 || r2.ID != 2 || r3.ID != 3 {
		t.Fatalf("ids = %d,%d,%d, want 1,2,3", r1.ID, r2.ID, r3.ID)
	}

	rooms := s.Rooms(1)
	if len(rooms) != 2 || rooms[0].ID != 1 || rooms[1].ID != 3 {
		t.Fatalf("Rooms(1) = %+v", rooms)
	}

	room, err := s.Room(2)
	if err != nil {
		t.Fatalf("Room(2): %v", err)
	}
	if room.Get("room_name").String() != "B" {
		t.Errorf("room_name = %q", room.Get("room_name").String())
	}
}

func TestStore_ListsAreNeverNil(t *testing.T) {
	s := New()
	s.CreateHouse([]byte(`{}`))

	for name, list := range map[string][]Record{
		"unknown house": s.Rooms(999),
		"empty house":   s.Rooms(1),
		"unknown room":  s.Devices(999),
	} {
		if list == nil || len(list) != 0 {
			t.Errorf("%s: got %#v, want empty non-nil", name, list)
		}
		b, _ := json.Marshal(list)
		if string(b) != "[]" {
			t.Errorf("%s: marshals to %s", name, b)
		}
	}
}

func TestStore_Devices(t *testing.T) {
	s := New()
	if _, err := s.AddDevice(1, []byte(`{"device_name":"Smart Light"}`)); err == nil {
		t.Fatal("AddDevice without room should fail")
	}

	s.CreateHouse([]byte(`{}`))
	s.AddRoom(1, []byte(`{}`))
	s.AddRoom(1, []byte(`{}`))

	d1, err := s.AddDevice(2, []byte(`{"device_name":"Smart Light"}`))
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if d1.ID != 1 {
		t.Errorf("device id = %d, want 1", d1.ID)
	}
	d2, _ := s.AddDevice(1, []byte(`{"device_name":"Thermostat"}`))
	if d2.ID != 2 {
		t.Errorf("device id = %d, want 2", d2.ID)
	}

	if got := s.Devices(2); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Devices(2) = %+v", got)
	}
	dev, err := s.Device(2)
	if err != nil || dev.Get("device_name").String() != "Thermostat" {
		t.Errorf("Device(2) = %+v, %v", dev, err)
	}
	if _, err := s.Device(3); err == nil || err.Error() != "Device not found" {
		t.Errorf("Device(3) error = %v", err)
	}
}

func TestStore_ListIsACopy(t *testing.T) {
	s := New()
	s.CreateHouse([]byte(`{}`))
	s.AddRoom(1, []byte(`{}`))

	rooms := s.Rooms(1)
	rooms[0] = Record{}
	if s.Rooms(1)[0].ID != 1 {
		t.Fatal("mutating a returned list changed the store")
	}
}

func TestStore_ConcurrentCreates(t *testing.T) {
	s := New()
	s.CreateHouse([]byte(`{}`))

	const n = 100
	var wg sync.WaitGroup
	ids := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.AddRoom(1, []byte(`{"room_name":"r"}`))
			if err != nil {
				t.Error(err)
				return
			}
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	for id := 1; id <= n; id++ {
		if !seen[id] {
			t.Errorf("missing id %d", id)
		}
	}
	if got := len(s.Rooms(1)); got != n {
		t.Errorf("len(Rooms) = %d, want %d", got, n)
	}
}
