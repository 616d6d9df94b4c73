package motion

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/alba-synchrotron/beamctl/generichttp"
)

// AxisLister is a controller that can enumerate its axes
type AxisLister interface {
	// Axes returns the names of the axes, in order
	Axes() []string
}

// HTTPAxes adds the axis listing route to the table
func HTTPAxes(l AxisLister, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axes"}] = func(w http.ResponseWriter, r *http.Request) {
		generichttp.RespondJSON(w, l.Axes())
	}
}

// Parameterizer is a controller with named runtime parameters that apply to
// the controller as a whole rather than one axis
type Parameterizer interface {
	// ParamNames lists the parameters the controller understands
	ParamNames() []string

	// GetParam returns the value of a parameter
	GetParam(string) (float64, error)

	// SetParam sets the value of a parameter
	SetParam(string, float64) error
}

// HTTPParams adds routes for the parameterizer to the route table
func HTTPParams(p Parameterizer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/params"}] = func(w http.ResponseWriter, r *http.Request) {
		generichttp.RespondJSON(w, p.ParamNames())
	}
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/param/{name}"}] = GetParam(p)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/param/{name}"}] = SetParam(p)
}

// GetParam returns an HTTP handler func that reads a parameter as {'f64': value}
func GetParam(p Parameterizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := p.GetParam(chi.URLParam(r, "name"))
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: v}
		hp.EncodeAndRespond(w, r)
	}
}

// SetParam returns an HTTP handler func that writes a parameter from {'f64': value}
func SetParam(p Parameterizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := generichttp.FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = p.SetParam(chi.URLParam(r, "name"), f.F64); err != nil {
			generichttp.Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Calculator exposes the transforms of a pseudo controller without moving
// anything
type Calculator interface {
	// CalcPhysical returns the physical positions for a full pseudo vector
	CalcPhysical([]float64) ([]float64, error)

	// CalcPseudo returns the pseudo positions for a full physical vector
	CalcPseudo([]float64) ([]float64, error)
}

// HTTPCalc adds the calculation routes to the table.  Both take and return
// {'f64s': [...]}
func HTTPCalc(c Calculator, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/calc/physical"}] = calc(c.CalcPhysical)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/calc/pseudo"}] = calc(c.CalcPseudo)
}

func calc(fcn func([]float64) ([]float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := generichttp.FloatsT{}
		err := json.NewDecoder(r.Body).Decode(&in)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := fcn(in.F64s)
		if err != nil {
			generichttp.Error(w, err)
			return
		}
		generichttp.RespondJSON(w, generichttp.FloatsT{F64s: out})
	}
}
