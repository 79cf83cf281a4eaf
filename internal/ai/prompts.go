package ai

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
)

const machineFocus = `Machine check focus: oil/coolant leaks, burn marks, loose belts/chains, abnormal heat spots, smoke, exposed wiring, vibration or misalignment, missing/loose guards, warning lights or error codes on HMI/panel. Treat safety/overheat/leak issues as HIGH severity.`

const productFocus = `Product QC focus: dents, scratches, cracks, missing components, misalignment, solder/assembly quality, wrong/blurred labels, contamination, color defects.`

const inspectionPromptTemplate = `
You are a Vision-Language QC Agent for a factory.
Inspection Type: %s
Target/Asset: %s

%s

TAG 1: QC LIST
1) Visual QC: Dents, scratches, color issues, deformation, misalignment.
2) Machine Panel QC: Temp/Pressure anomalies, Error codes on HMI.
3) Process QC: WIP pileups, missing docs, low raw materials.
- If Machine Check mode, prioritize machine health (leaks/heat/alarms) over cosmetic issues.

YOUR TASK:
Analyze the image and return ONLY JSON with this structure:
{
  "timestamp": "%s",
  "status": "PASS" or "REJECT",
  "confidence": float (0.0-1.0),
  "defects": ["List of defects in Thai"],
  "reasoning": "Technical reasoning in Thai",
  "action_command": "ACCEPT_PART" or "REJECT_PART",
  "root_cause": "Root cause analysis in Thai (e.g. Machine calibration error, Material defect)",
  "severity": "LOW" or "MEDIUM" or "HIGH",
  "qc_list": {
    "visual_qc": { "issues": [], "ok": boolean },
    "machine_panel_qc": { "issues": [], "ok": boolean },
    "process_qc": { "issues": [], "ok": boolean }
  },
  "pain_points": ["Summary of pain points"],
  "solution": {
    "summary": "How AI helps in this case (Thai)",
    "recommended_actions": ["Specific step-by-step fix in Thai"]
  }
}
`

const chatPromptTemplate = `
คุณคือ "Spectra-Q Copilot" ผู้ช่วยวิศวกร AI อัจฉริยะประจำโรงงาน

--- ข้อมูลหน้างาน Real-time (DATA CONTEXT) ---
- Total Scans: %d
- Passed: %d
- Rejected: %d (Yield: %s%%)
- Active Technicians: %s
- ล็อกการตรวจสอบล่าสุด 5 รายการ: %s
-----------------------------------------------

คำถามจาก User: "%s"

หน้าที่ของคุณ:
1. ตอบคำถามโดยอ้างอิงข้อมูลข้างต้นเสมอ
2. **ถ้า User ถามถึงปัญหา/สาเหตุ:** ให้วิเคราะห์จาก 'defect' และ 'reason' ในล็อกล่าสุด แล้วสรุปว่าปัญหาหลักคืออะไร
3. **ถ้า User ถามวิธีแก้:** ให้แนะนำแนวทางแก้ไขทางวิศวกรรม
4. ตอบเป็นภาษาไทย สั้น กระชับ แบบมืออาชีพ (Professional & Actionable)
`

// inspectionLabel is the prompt wording for an inspection type
func inspectionLabel(t inspection.Type) string {
	if t == inspection.TypeMachineCheck {
		return "Machine / Equipment Condition Check (ตรวจสอบเครื่องจักร)"
	}
	return "QC Product (ตรวจสอบชิ้นงาน)"
}

// BuildInspectionPrompt renders the classifier instruction
func BuildInspectionPrompt(t inspection.Type, target string, now time.Time) string {
	focus := productFocus
	if t == inspection.TypeMachineCheck {
		focus = machineFocus
	}
	return fmt.Sprintf(inspectionPromptTemplate, inspectionLabel(t), target, focus, now.UTC().Format(time.RFC3339))
}

// BuildChatPrompt renders the copilot instruction with the dashboard context
func BuildChatPrompt(question string, c ChatContext) string {
	logs := c.RecentLogs
	if len(logs) > recentLogLimit {
		logs = logs[:recentLogLimit]
	}
	if logs == nil {
		logs = []LogSummary{}
	}
	techs := c.Technicians
	if techs == nil {
		techs = []string{}
	}
	passRate := c.PassRate
	if passRate == "" {
		passRate = "-"
	}
	return fmt.Sprintf(chatPromptTemplate, c.Total, c.Passed, c.Rejected, passRate, mustJSON(techs), mustJSON(logs), question)
}

// BuildManualQuestion phrases the "how do I fix this code" question
func BuildManualQuestion(errorCode string) string {
	return fmt.Sprintf("เครื่องจักรแจ้งเตือน Error Code %s ต้องแก้ไขอย่างไรตามคู่มือ?", errorCode)
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
