package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/zabeloliver/smarthome-api/store"
)

var prettyOptions = &pretty.Options{Width: 80, Indent: "    "}

func writeJSON(c echo.Context, code int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeRaw(c, code, b)
}

func writeRaw(c echo.Context, code int, doc []byte) error {
	return c.Blob(code, echo.MIMEApplicationJSON, pretty.PrettyOptions(doc, prettyOptions))
}

func writeError(c echo.Context, code int, msg string) error {
	return writeJSON(c, code, map[string]string{"error": msg})
}

// writeCreated answers 201 with {"<kind>_id": id, "message": msg}, id first.
func writeCreated(c echo.Context, kind store.Kind, id int, msg string) error {
	doc, err := sjson.SetBytes([]byte(`{}`), kind.IDKey(), id)
	if err != nil {
		return err
	}
	doc, err = sjson.SetBytes(doc, "message", msg)
	if err != nil {
		return err
	}
	return writeRaw(c, http.StatusCreated, doc)
}
