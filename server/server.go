// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// HumanPayload is a struct holding one primitive, selected by T.
// It is encoded as a single-key JSON object, {"bool": true} and friends
type HumanPayload struct {
	// T is the type of the payload, one of types.Bool, Int, Float64, String
	T types.BasicKind

	Bool   bool
	Int    int
	Float  float64
	String string
}

// MarshalJSON encodes the field selected by T
func (hp HumanPayload) MarshalJSON() ([]byte, error) {
	switch hp.T {
	case types.Bool:
		return json.Marshal(BoolT{hp.Bool})
	case types.Int:
		return json.Marshal(IntT{hp.Int})
	case types.Float64:
		return json.Marshal(FloatT{hp.Float})
	case types.String:
		return json.Marshal(StrT{hp.String})
	default:
		return nil, fmt.Errorf("unsupported payload kind %v", hp.T)
	}
}

// EncodeAndRespond writes the payload to w as JSON, or an error if it can't be encoded
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(hp)
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ReplyWithFile replies to the client request by serving the given file name
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", fldr, fn, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("source file missing %s", filePath)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, fn, stat.ModTime(), f)
}
