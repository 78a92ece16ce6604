package http

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"creditrisk/dataset"
	"creditrisk/ml"
)

// RegisterFormHandlers mounts the demo pages.
func RegisterFormHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /predict", handleForm)
	mux.HandleFunc("POST /predict", handleFormSubmit)
}

type formPage struct {
	Sexes     []string
	Housings  []string
	Savings   []string
	Checkings []string
	Purposes  []string
	Result    *ml.Prediction
	Error     string
}

func formData() formPage {
	return formPage{
		Sexes:     dataset.SexValues(),
		Housings:  dataset.HousingValues(),
		Savings:   dataset.SavingValues(),
		Checkings: dataset.CheckingValues(),
		Purposes:  dataset.PurposeValues(),
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTemplate.Execute(w, nil)
}

func handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	formTemplate.Execute(w, formData())
}

func handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	page := formData()
	defer func() {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		formTemplate.Execute(w, page)
	}()

	state := current.Load()
	if state == nil {
		page.Error = "model not loaded"
		return
	}
	rec, err := recordFromForm(r)
	if err != nil {
		page.Error = err.Error()
		return
	}
	prediction, err := state.svc.Predict(*rec)
	if err != nil {
		page.Error = err.Error()
		return
	}
	page.Result = prediction
}

func recordFromForm(r *http.Request) (*dataset.Record, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	intValue := func(name string) (int, error) {
		raw := r.PostFormValue(name)
		if raw == "" {
			return 0, errors.New(name + " is required")
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.New(name + " must be a number")
		}
		return v, nil
	}

	rec := &dataset.Record{
		Sex:             r.PostFormValue("sex"),
		Housing:         r.PostFormValue("housing"),
		SavingAccounts:  r.PostFormValue("saving_accounts"),
		CheckingAccount: r.PostFormValue("checking_account"),
		Purpose:         r.PostFormValue("purpose"),
	}
	var err error
	if rec.Age, err = intValue("age"); err != nil {
		return nil, err
	}
	if rec.Job, err = intValue("job"); err != nil {
		return nil, err
	}
	if rec.CreditAmount, err = intValue("credit_amount"); err != nil {
		return nil, err
	}
	if rec.Duration, err = intValue("duration"); err != nil {
		return nil, err
	}
	rec.NormalizeMissing()
	return rec, nil
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Credit Risk Scoring</title></head>
<body>
  <h1>Credit Risk Scoring</h1>
  <p>Predict whether a customer presents a good or bad credit risk.</p>
  <p><a href="/predict">Open the prediction form</a></p>
</body>
</html>`))

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><title>Credit Risk Prediction</title></head>
<body>
  <h1>Customer Credit Risk Prediction</h1>
  {{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
  {{if .Result}}
  <h2>Result</h2>
  <p>This customer presents <strong>{{if eq .Result.Label 1}}BAD RISK{{else}}GOOD RISK{{end}}</strong>
     (probability of bad risk: {{printf "%.3f" .Result.Probability}})</p>
  {{end}}
  <form method="post" action="/predict">
    <label>Age <input type="number" name="age" required></label><br>
    <label>Sex <select name="sex">{{range .Sexes}}<option>{{.}}</option>{{end}}</select></label><br>
    <label>Job (0-3) <input type="number" name="job" min="0" max="3" required></label><br>
    <label>Housing <select name="housing">{{range .Housings}}<option>{{.}}</option>{{end}}</select></label><br>
    <label>Saving accounts <select name="saving_accounts">{{range .Savings}}<option>{{.}}</option>{{end}}</select></label><br>
    <label>Checking account <select name="checking_account">{{range .Checkings}}<option>{{.}}</option>{{end}}</select></label><br>
    <label>Credit amount <input type="number" name="credit_amount" required></label><br>
    <label>Duration (months) <input type="number" name="duration" required></label><br>
    <label>Purpose <select name="purpose">{{range .Purposes}}<option>{{.}}</option>{{end}}</select></label><br>
    <button type="submit">Predict</button>
  </form>
</body>
</html>`))
