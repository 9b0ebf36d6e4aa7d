package event

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// FormData is the raw event input as submitted by a client.
type FormData struct {
	Title     string  `json:"title" validate:"required,max=100"`
	Date      string  `json:"date" validate:"required"`
	Time      string  `json:"time" validate:"required"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	Recurring *bool   `json:"recurring,omitempty"`
}

// FieldErrors maps a field name to the messages describing why it was rejected.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

var validate = newValidator()

var messages = map[string]string{
	"title.required": "Title is required.",
	"title.max":      "Title must be 100 characters or less.",
	"date.required":  "Date is required.",
	"time.required":  "Time is required.",
	"notes.max":      "Notes must be 500 characters or less.",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the form and returns the normalized payload. When the form is rejected the
// returned FieldErrors is non-empty and the payload must not be used.
func Validate(form FormData) (EventData, FieldErrors) {
	err := validate.Struct(form)
	if err != nil {
		fieldErrors := FieldErrors{}
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			log.Errorf("unexpected validation failure: %v", err)
			fieldErrors.add("form", "Invalid event data.")
			return EventData{}, fieldErrors
		}
		for _, fe := range validationErrors {
			message, ok := messages[fe.Field()+"."+fe.Tag()]
			if !ok {
				message = "Invalid value."
			}
			fieldErrors.add(fe.Field(), message)
		}
		return EventData{}, fieldErrors
	}

	data := EventData{
		Title: form.Title,
		Date:  form.Date,
		Time:  form.Time,
	}
	if form.Notes != nil {
		data.Notes = *form.Notes
	}
	if form.Recurring != nil {
		data.Recurring = *form.Recurring
	}
	return data, nil
}

// FormDataFromValues reads a url-encoded form post. An HTML checkbox sends "on" when ticked and
// nothing otherwise.
func FormDataFromValues(values url.Values) FormData {
	form := FormData{
		Title: values.Get("title"),
		Date:  values.Get("date"),
		Time:  values.Get("time"),
	}
	if values.Has("notes") {
		notes := values.Get("notes")
		form.Notes = &notes
	}
	if values.Has("recurring") {
		var recurring bool
		switch strings.ToLower(values.Get("recurring")) {
		case "on", "true", "1", "yes":
			recurring = true
		}
		form.Recurring = &recurring
	}
	return form
}
