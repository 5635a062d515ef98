// Package api serves the SmartHome resources over HTTP/JSON.
//
// Routes:
//
//	POST /users/                  GET /users/:id
//	POST /houses/                 GET /houses/:id
//	POST /houses/:id/rooms/       GET /houses/:id/rooms/
//	POST /rooms/:id/devices/      GET /rooms/:id/devices/
//	GET  /rooms/:id               GET /devices/:id
//
// Nested collection routes are separate patterns, so a rooms path never
// reaches the single-house lookup. Every response is pretty-printed JSON.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-api/events"
	"github.com/zabeloliver/smarthome-api/store"
)

const maxBodyBytes = 2 << 20

type API struct {
	Store  *store.Store
	Sink   events.Sink
	Logger *zap.SugaredLogger
}

func New(s *store.Store, sink events.Sink, logger *zap.SugaredLogger) *API {
	if sink == nil {
		sink = events.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &API{Store: s, Sink: sink, Logger: logger}
}

// Register attaches the resource routes and the JSON error handler to e.
func (a *API) Register(e *echo.Echo) {
	e.HTTPErrorHandler = a.handleError
	e.Pre(onlyGetAndPost)

	e.POST("/users/", a.CreateUser)
	e.GET("/users/:id", a.GetUser)

	e.POST("/houses/", a.CreateHouse)
	e.GET("/houses/:id", a.GetHouse)
	e.POST("/houses/:id/rooms/", a.AddRoom)
	e.GET("/houses/:id/rooms/", a.ListRooms)

	e.GET("/rooms/:id", a.GetRoom)
	e.POST("/rooms/:id/devices/", a.AddDevice)
	e.GET("/rooms/:id/devices/", a.ListDevices)

	e.GET("/devices/:id", a.GetDevice)
}

func (a *API) CreateUser(c echo.Context) error {
	return a.create(c, store.User, 0, func(body []byte) (store.Record, error) {
		return a.Store.CreateUser(body)
	})
}

func (a *API) GetUser(c echo.Context) error {
	return a.get(c, store.User, a.Store.User)
}

func (a *API) CreateHouse(c echo.Context) error {
	return a.create(c, store.House, 0, func(body []byte) (store.Record, error) {
		return a.Store.CreateHouse(body)
	})
}

func (a *API) GetHouse(c echo.Context) error {
	return a.get(c, store.House, a.Store.House)
}

func (a *API) AddRoom(c echo.Context) error {
	houseID, ok := pathID(c)
	if !ok {
		return writeError(c, http.StatusNotFound, (&store.NotFoundError{Kind: store.House}).Error())
	}
	return a.create(c, store.Room, houseID, func(body []byte) (store.Record, error) {
		return a.Store.AddRoom(houseID, body)
	})
}

func (a *API) ListRooms(c echo.Context) error {
	houseID, ok := pathID(c)
	if !ok {
		return writeJSON(c, http.StatusOK, []store.Record{})
	}
	return writeJSON(c, http.StatusOK, a.Store.Rooms(houseID))
}

func (a *API) GetRoom(c echo.Context) error {
	return a.get(c, store.Room, a.Store.Room)
}

func (a *API) AddDevice(c echo.Context) error {
	roomID, ok := pathID(c)
	if !ok {
		return writeError(c, http.StatusNotFound, (&store.NotFoundError{Kind: store.Room}).Error())
	}
	return a.create(c, store.Device, roomID, func(body []byte) (store.Record, error) {
		return a.Store.AddDevice(roomID, body)
	})
}

func (a *API) ListDevices(c echo.Context) error {
	roomID, ok := pathID(c)
	if !ok {
		return writeJSON(c, http.StatusOK, []store.Record{})
	}
	return writeJSON(c, http.StatusOK, a.Store.Devices(roomID))
}

func (a *API) GetDevice(c echo.Context) error {
	return a.get(c, store.Device, a.Store.Device)
}

func (a *API) create(c echo.Context, kind store.Kind, parentID int, add func([]byte) (store.Record, error)) error {
	body, err := readBody(c.Request())
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid JSON body")
	}

	rec, err := add(body)
	var nf *store.NotFoundError
	switch {
	case errors.As(err, &nf):
		return writeError(c, http.StatusNotFound, nf.Error())
	case errors.Is(err, store.ErrInvalidBody):
		return writeError(c, http.StatusBadRequest, "Invalid JSON body")
	case err != nil:
		return err
	}

	a.publish(c.Request().Context(), events.Event{Kind: kind, ID: rec.ID, ParentID: parentID, Time: time.Now()})

	verb := "added!"
	if kind == store.User || kind == store.House {
		verb = "created!"
	}
	return writeCreated(c, kind, rec.ID, kind.Title()+" "+verb)
}

func (a *API) get(c echo.Context, kind store.Kind, lookup func(int) (store.Record, error)) error {
	id, ok := pathID(c)
	if !ok {
		return writeError(c, http.StatusNotFound, (&store.NotFoundError{Kind: kind}).Error())
	}
	rec, err := lookup(id)
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return writeError(c, http.StatusNotFound, nf.Error())
	}
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, rec)
}

func (a *API) publish(ctx context.Context, e events.Event) {
	if err := a.Sink.Publish(ctx, e); err != nil {
		a.Logger.Warnw("publishing event failed", "kind", e.Kind, "id", e.ID, "error", err)
	}
}

// onlyGetAndPost sends every other method to the 404 fallback before echo's
// router can answer it, e.g. OPTIONS with its built-in 204.
func onlyGetAndPost(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodGet, http.MethodPost:
			return next(c)
		}
		return echo.ErrNotFound
	}
}

// StatusFor is the status handleError answers err with. Unknown paths and
// methods both map to 404.
func StatusFor(err error) int {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return http.StatusInternalServerError
	}
	switch he.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return http.StatusNotFound
	case http.StatusRequestEntityTooLarge, http.StatusBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var werr error
	switch code := StatusFor(err); code {
	case http.StatusNotFound:
		werr = writeError(c, code, "Not found")
	case http.StatusBadRequest:
		werr = writeError(c, code, "Invalid JSON body")
	default:
		a.Logger.Errorw("request failed", "path", c.Request().URL.Path, "error", err)
		werr = writeError(c, code, "Internal server error")
	}
	if werr != nil {
		a.Logger.Error(werr)
	}
}

func pathID(c echo.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("body too large")
	}
	return body, nil
}
