/*
   Flompy - floppy disk dumper
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of Flompy.

   Flompy is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Flompy is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Flompy. If not, see <http://www.gnu.org/licenses/>.
*/

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
)

//
const defaultPort = 8888

//
type APIServer interface {
	Serve() error
	Stop() error
}

/*
	NewAPIServer creates an API server for reading single units from the disk
	behind the imager. Track reads use the given low level config, sector
	reads the given sector size unless the request says otherwise.
*/
func NewAPIServer(addr string, im *imager.Imager, low fdc.Config,
	g geometry.Geometry) APIServer {
	return &api{address: addr, imager: im, low: low, geometry: g}
}

//
type api struct {
	address  string
	imager   *imager.Imager
	low      fdc.Config
	geometry geometry.Geometry
	server   *http.Server
}

//
func (a *api) Serve() error {

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:%d", a.address, defaultPort)
	}

	log.Infof("flompy API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: a.router()}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "boot", "GET", "/boot", a.boot)
	addRoute(router, "sector", "GET",
		"/sector/{track:[0-9]+}/{side:[01]}/{sector:[0-9]+}", a.sector)
	addRoute(router, "track", "GET",
		"/track/{track:[0-9]+}/{side:[01]}", a.track)

	return router
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	stat := &Status{
		LowLevel: a.imager.HasLowLevel(),
		Geometry: a.geometry.String(),
	}

	if boot, err := a.imager.BootSector(); err != nil {
		stat.Boot = err.Error()
	} else {
		stat.Boot = boot.Summary()
	}

	if wantsJSON(req) {
		sendJSONReply(stat, http.StatusOK, w)
	} else {
		sendReply([]byte(stat.String()), http.StatusOK, w)
	}
}

//
func (a *api) boot(w http.ResponseWriter, req *http.Request) {

	boot, err := a.imager.BootSector()
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(newBootInfo(boot), http.StatusOK, w)
	} else {
		var sb strings.Builder
		boot.Emit(&sb)
		sendReply([]byte(sb.String()), http.StatusOK, w)
	}
}

/*
	sector reads a single sector through the block service. A failed read is
	not an error of the request, the reply carries the status and whatever
	data the read produced.
*/
func (a *api) sector(w http.ResponseWriter, req *http.Request) {

	track, side, ok := getTrackSide(w, req)
	if !ok {
		return
	}
	sector := getVar(w, req, "sector")
	if sector == -1 {
		return
	}

	size := geometry.DefaultSectorSize
	if a.geometry.SectorBytes.IsSet() {
		size = a.geometry.SectorBytes.Int()
	}
	if arg, err := getIntArg(req, "bytes"); err == nil {
		size = arg
	}
	if size <= 0 || size > geometry.MaxSectorSize {
		handleError(fmt.Errorf("invalid sector size %d", size),
			http.StatusUnprocessableEntity, w)
		return
	}

	data, st := a.imager.ReadSector(track, side, sector, size)
	reply := &SectorReply{
		Unit:   imager.Unit{Track: track, Side: side, Sector: sector},
		Status: int(st),
		Data:   data,
	}
	if !st.OK() {
		reply.Error = st.String()
	}

	if wantsJSON(req) {
		sendJSONReply(reply, http.StatusOK, w)
	} else {
		sendReply([]byte(reply.String()), http.StatusOK, w)
	}
}

//
func (a *api) track(w http.ResponseWriter, req *http.Request) {

	track, side, ok := getTrackSide(w, req)
	if !ok {
		return
	}

	cfg := a.low
	cfg.Timing = isFlagSet(req, "timing")

	capt, err := a.imager.ReadTrack(cfg, track, side)
	if err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, fdc.StatusBusy):
			status = http.StatusLocked
		case errors.Is(err, imager.ErrUnsupported):
			status = http.StatusNotImplemented
		case errors.Is(err, imager.ErrLowOpen), errors.Is(err, imager.ErrMemory):
			status = http.StatusInternalServerError
		}
		handleError(err, status, w)
		return
	}

	reply := &TrackReply{
		Unit:    imager.Unit{Track: track, Side: side},
		Length:  len(capt.Data),
		Result:  capt.Result.String(),
		Data:    capt.Data,
		Elapsed: capt.Elapsed,
	}

	if wantsJSON(req) {
		sendJSONReply(reply, http.StatusOK, w)
	} else {
		sendReply([]byte(reply.String()), http.StatusOK, w)
	}
}

//
func getTrackSide(w http.ResponseWriter, req *http.Request) (int, int, bool) {
	track := getVar(w, req, "track")
	if track == -1 {
		return 0, 0, false
	}
	side := getVar(w, req, "side")
	if side == -1 {
		return 0, 0, false
	}
	return track, side, true
}

//
func getVar(w http.ResponseWriter, req *http.Request, name string) int {
	vars := mux.Vars(req)
	ret, err := strconv.Atoi(vars[name])
	if err == nil && ret > 0xff {
		err = fmt.Errorf("%s %d out of range", name, ret)
	}
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return -1
	}
	return ret
}

//
func isFlagSet(req *http.Request, flag string) bool {
	arg, _ := getArg(req, flag)
	return arg == "true"
}

//
func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

//
func getIntArg(req *http.Request, arg string) (int, error) {
	val, err := getArg(req, arg)
	if err != nil {
		return -1, err
	}
	return strconv.Atoi(val)
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing reply: %v", err)
	}
}

//
func wantsJSON(req *http.Request) bool {
	for _, h := range []string{"Accept", "Content-Type"} {
		if strings.HasPrefix(req.Header.Get(h), "application/json") {
			return true
		}
	}
	return false
}
