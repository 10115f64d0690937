// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator should return one shared instance")
	}
}

type sampleRequest struct {
	Name  string `validate:"required,min=1,max=64"`
	Role  string `validate:"required,oneof=admin user"`
	ID    string `validate:"omitempty,uuid4"`
	Limit int    `validate:"min=1,max=1000"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input sampleRequest
	}{
		{"all fields", sampleRequest{Name: "survey", Role: "admin", ID: "8b41dbf0-1c3f-4e9e-9a43-9e51dc5a1b77", Limit: 100}},
		{"optional id empty", sampleRequest{Name: "s", Role: "user", Limit: 1}},
		{"boundary limit", sampleRequest{Name: "s", Role: "user", Limit: 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() = %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     sampleRequest
		wantField string
		wantTag   string
	}{
		{"missing name", sampleRequest{Role: "user", Limit: 1}, "Name", "required"},
		{"bad role", sampleRequest{Name: "s", Role: "superuser", Limit: 1}, "Role", "oneof"},
		{"bad uuid", sampleRequest{Name: "s", Role: "user", ID: "not-a-uuid", Limit: 1}, "ID", "uuid4"},
		{"limit too high", sampleRequest{Name: "s", Role: "user", Limit: 5000}, "Limit", "max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			found := false
			for _, f := range err.Fields() {
				if f.Field == tt.wantField && f.Tag == tt.wantTag {
					found = true
					if f.Message == "" {
						t.Errorf("field %s has empty message", f.Field)
					}
				}
			}
			if !found {
				t.Errorf("Fields() = %+v, want %s/%s", err.Fields(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestTranslatedMessages(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Role: "user", Limit: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Name is required") {
		t.Errorf("Error() = %q", err.Error())
	}

	details := err.Details()
	fields, ok := details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 1 {
		t.Fatalf("Details() = %+v", details)
	}
	if fields[0]["field"] != "Name" || fields[0]["tag"] != "required" {
		t.Errorf("detail entry = %+v", fields[0])
	}
}
