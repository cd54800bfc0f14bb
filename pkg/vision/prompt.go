package vision

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`You are a certified construction site inspector conducting a professional analysis.

**PROJECT CONTEXT:**
{{- if .SiteName}}
- Site: {{.SiteName}}
{{- end}}
- Work Category: {{.Category}}
- Number of Images: {{len .Images}}
- Engineer's Description: {{.Description}}
{{if .Floors}}
**FLOOR-WISE PROGRESS DETAILS:**
{{range .Floors}}
**{{.Label}}:**
- Work Phase: {{.WorkPhase}}
- Overall Floor Progress: {{.Progress}}%
- Work Types:
{{- range .WorkTypes}}
  • {{.Name}}: {{.Status}} ({{.Progress}}%)
{{- end}}
{{end}}
{{- end}}
**ANALYSIS INSTRUCTIONS:**
Examine all {{len .Images}} image(s) and cross-reference with the provided floor-wise progress data.

**REQUIRED REPORT STRUCTURE:**

**1. VERIFICATION STATUS**
Select ONE based on visual evidence:
- ✅ VERIFIED: Visual evidence fully confirms reported work
- ⚠️ PARTIALLY VERIFIED: Some aspects confirmed, discrepancies noted
- ❌ NOT VERIFIED: Visual evidence contradicts description
- ℹ️ INSUFFICIENT DATA: Image quality/coverage inadequate

**2. VISUAL EVIDENCE ANALYSIS**
- Document what is clearly visible in each image
- Identify materials, equipment, and completed work
- Note image quality and coverage adequacy
- Compare visual findings with engineer's floor-wise description

**3. TECHNICAL QUALITY ASSESSMENT**
- **Workmanship Rating:** [Excellent/Good/Adequate/Poor/Cannot Assess]
- **Justification:** Specific observations
- **Materials & Specifications:** Visible materials and condition
- **Defects/Issues:** Any visible problems
- **Industry Standards Compliance:** For {{.Category}}

**4. SAFETY & COMPLIANCE**
- **PPE Status:** Visible safety gear
- **Site Safety Measures:** Barriers, signage, fall protection
- **Hazard Identification:** List visible hazards
- **Housekeeping:** Site cleanliness and organization

**5. FLOOR-WISE VERIFICATION**
For each floor mentioned, verify:
- Does visual evidence support the claimed progress percentage?
- Are the listed work types actually visible in the images?
- Any discrepancies between claimed and observed progress?

**6. RECOMMENDATIONS**
- **Immediate Actions Required**
- **Quality Improvements**
- **Additional Documentation Needed**
- **Follow-up Inspections**

**7. PROGRESS ASSESSMENT**
- **Overall Estimated Completion:** [0-100]%
- **Basis for Estimate:** Explain reasoning
- **Work Remaining:** What needs to be completed
- **Timeline Assessment:** Is progress on track?

Provide objective, evidence-based analysis using precise construction terminology.`))

// BuildPrompt renders the inspector prompt for req.
func BuildPrompt(req Request) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}
