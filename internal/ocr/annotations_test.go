package ocr

import "testing"

func TestParseAnnotations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Annotations
	}{
		{
			name: "spectralis header",
			text: "Spectralis OCT  OD\nPatient ID: tr-20931\n2024-11-05 10:42",
			want: Annotations{Eye: "OD", ScanDate: "2024-11-05", PatientID: "TR-20931", Device: "Spectralis"},
		},
		{
			name: "day first date and left eye",
			text: "CIRRUS HD-OCT\nLeft Eye  Macular Cube 512x128\n05.03.2023\nFile No 88412",
			want: Annotations{Eye: "OS", ScanDate: "2023-03-05", PatientID: "88412", Device: "Cirrus"},
		},
		{
			name: "slash date",
			text: "OS 17/08/2022 triton",
			want: Annotations{Eye: "OS", ScanDate: "2022-08-17", Device: "Triton"},
		},
		{
			name: "invalid date ignored",
			text: "OD 2023-13-40",
			want: Annotations{Eye: "OD"},
		},
		{
			name: "nothing recognisable",
			text: "lorem ipsum",
			want: Annotations{},
		},
		{
			name: "words containing OD are not laterality",
			text: "model good",
			want: Annotations{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAnnotations(tt.text); got != tt.want {
				t.Errorf("ParseAnnotations() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLanguageDefault(t *testing.T) {
	if got := language(""); got != DefaultLanguage {
		t.Errorf("language(\"\") = %q, want %q", got, DefaultLanguage)
	}
	if got := language("tur"); got != "tur" {
		t.Errorf("language(\"tur\") = %q", got)
	}
}
