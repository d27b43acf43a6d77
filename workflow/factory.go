package workflow

// Factory helpers for common workflow shapes. These double as executable
// examples: each returned definition passes Validate and runs against any
// orchestrator whose handler registry provides the named handler refs.

// NewApprovalWorkflow builds a four-stage approval pipeline: analyse the
// request, make a decision, then route to an approval or rejection task
// based on the decision output.
//
// Handler refs used: analysisHandler for analyse/approve/reject stages,
// decisionHandler for the decision stage.
func NewApprovalWorkflow(name, description, analysisHandler, decisionHandler string) *WorkflowDefinition {
	def := NewWorkflowDefinition(name, description)
	def.EntryTaskID = "analyze"
	def.Variables = map[string]any{
		"decision_criteria": "Standard approval criteria",
	}

	def.AddTask(&Task{
		ID:           "analyze",
		Name:         "Analyze Request",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"task": "request_data"},
		OutputKey:    "analysis_result",
		Successors:   []string{"decide"},
		MaxRetries:   3,
	})
	def.AddTask(&Task{
		ID:         "decide",
		Name:       "Make Decision",
		Type:       TaskTypeSequential,
		HandlerRef: decisionHandler,
		InputMapping: map[string]string{
			"analysis": "analysis_result",
			"criteria": "decision_criteria",
		},
		OutputKey:  "decision",
		Successors: []string{"route"},
		MaxRetries: 3,
	})
	def.AddTask(&Task{
		ID:         "route",
		Name:       "Route Based on Decision",
		Type:       TaskTypeConditional,
		Condition:  "${decision.approved} == true",
		Successors: []string{"approve", "reject"},
	})
	def.AddTask(&Task{
		ID:           "approve",
		Name:         "Process Approval",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"decision": "decision"},
		OutputKey:    "approval_result",
	})
	def.AddTask(&Task{
		ID:           "reject",
		Name:         "Process Rejection",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"decision": "decision"},
		OutputKey:    "rejection_result",
	})
	return def
}

// NewComplaintWorkflow builds a customer-complaint triage pipeline: analyse
// the complaint, fan out compliance and pattern checks in parallel, then
// route to an escalation or standard response based on severity.
func NewComplaintWorkflow(name, description, analysisHandler, responseHandler string) *WorkflowDefinition {
	def := NewWorkflowDefinition(name, description)
	def.EntryTaskID = "analyze_complaint"
	def.Variables = map[string]any{
		"escalation_threshold": 7,
	}

	def.AddTask(&Task{
		ID:           "analyze_complaint",
		Name:         "Analyze Complaint",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"complaint": "complaint_text"},
		OutputKey:    "complaint_analysis",
		Successors:   []string{"fan_out_checks"},
	})
	def.AddTask(&Task{
		ID:         "fan_out_checks",
		Name:       "Run Checks",
		Type:       TaskTypeParallel,
		Successors: []string{"check_compliance", "analyze_patterns"},
	})
	def.AddTask(&Task{
		ID:           "check_compliance",
		Name:         "Check Compliance",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"analysis": "complaint_analysis"},
		OutputKey:    "compliance_result",
		Successors:   []string{"route_response"},
	})
	def.AddTask(&Task{
		ID:           "analyze_patterns",
		Name:         "Analyze Patterns",
		Type:         TaskTypeSequential,
		HandlerRef:   analysisHandler,
		InputMapping: map[string]string{"analysis": "complaint_analysis"},
		OutputKey:    "pattern_result",
	})
	def.AddTask(&Task{
		ID:         "route_response",
		Name:       "Route Response",
		Type:       TaskTypeConditional,
		Condition:  "${complaint_analysis.severity} >= ${escalation_threshold}",
		Successors: []string{"escalate_response", "standard_response"},
	})
	def.AddTask(&Task{
		ID:           "escalate_response",
		Name:         "Escalate Response",
		Type:         TaskTypeSequential,
		HandlerRef:   responseHandler,
		InputMapping: map[string]string{"analysis": "complaint_analysis"},
		OutputKey:    "response",
	})
	def.AddTask(&Task{
		ID:           "standard_response",
		Name:         "Standard Response",
		Type:         TaskTypeSequential,
		HandlerRef:   responseHandler,
		InputMapping: map[string]string{"analysis": "complaint_analysis"},
		OutputKey:    "response",
	})
	return def
}

// NewRiskAssessmentWorkflow builds a risk-assessment pipeline: identify
// risks, assess operational, financial, and compliance dimensions in
// parallel, then create a mitigation plan from the combined results.
func NewRiskAssessmentWorkflow(name, description, riskHandler string) *WorkflowDefinition {
	def := NewWorkflowDefinition(name, description)
	def.EntryTaskID = "identify_risks"

	def.AddTask(&Task{
		ID:           "identify_risks",
		Name:         "Identify Risks",
		Type:         TaskTypeSequential,
		HandlerRef:   riskHandler,
		InputMapping: map[string]string{"scope": "assessment_scope"},
		OutputKey:    "identified_risks",
		Successors:   []string{"parallel_assessment"},
	})
	def.AddTask(&Task{
		ID:         "parallel_assessment",
		Name:       "Assess Risk Dimensions",
		Type:       TaskTypeParallel,
		Successors: []string{"analyze_operational", "analyze_financial", "analyze_compliance"},
	})
	for _, dim := range []string{"operational", "financial", "compliance"} {
		def.AddTask(&Task{
			ID:           "analyze_" + dim,
			Name:         "Analyze " + dim + " risk",
			Type:         TaskTypeSequential,
			HandlerRef:   riskHandler,
			InputMapping: map[string]string{"risks": "identified_risks"},
			OutputKey:    dim + "_assessment",
		})
	}
	def.AddTask(&Task{
		ID:         "create_mitigation",
		Name:       "Create Mitigation Plan",
		Type:       TaskTypeSequential,
		HandlerRef: riskHandler,
		InputMapping: map[string]string{
			"operational": "operational_assessment",
			"financial":   "financial_assessment",
			"compliance":  "compliance_assessment",
		},
		OutputKey: "mitigation_plan",
	})
	// identify_risks walks its successors in order, so create_mitigation only
	// starts after the parallel barrier has released.
	def.Tasks["identify_risks"].Successors = []string{"parallel_assessment", "create_mitigation"}
	return def
}
