package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// RequiredFunctions are the web-service functions the dashboard cannot work without
var RequiredFunctions = []string{
	moodle.FuncSiteInfo,
	moodle.FuncGetCategories,
	moodle.FuncGetCourses,
	moodle.FuncGetEnrolledUsers,
}

// MoodleProvider probes the Moodle web-service endpoint through site info
type MoodleProvider struct {
	BaseProvider
	caller moodle.Caller
}

// NewMoodleProvider creates a new Moodle provider
func NewMoodleProvider(caller moodle.Caller) *MoodleProvider {
	return &MoodleProvider{
		BaseProvider: BaseProvider{serviceType: "moodle"},
		caller:       caller,
	}
}

// HealthCheck verifies the token can call site info
func (p *MoodleProvider) HealthCheck(ctx context.Context) error {
	_, err := p.siteInfo(ctx)
	return err
}

// Diagnose reports the site release and which required functions the token lacks
func (p *MoodleProvider) Diagnose(ctx context.Context) (map[string]string, error) {
	info, err := p.siteInfo(ctx)
	if err != nil {
		return nil, err
	}

	details := map[string]string{
		"site_name": moodle.StringField(info, "sitename"),
		"release":   moodle.StringField(info, "release"),
		"version":   moodle.StringField(info, "version"),
		"user":      moodle.StringField(info, "username"),
	}

	functions := moodle.Items(info["functions"])
	if functions == nil {
		return details, nil
	}

	available := make(map[string]bool, len(functions))
	for _, f := range functions {
		if m, ok := moodle.AsMap(f); ok {
			available[moodle.StringField(m, "name")] = true
		}
	}
	details["functions"] = strconv.Itoa(len(available))

	var missing []string
	for _, name := range RequiredFunctions {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		details["missing_functions"] = strings.Join(missing, ",")
	}
	return details, nil
}

func (p *MoodleProvider) siteInfo(ctx context.Context) (map[string]interface{}, error) {
	payload, err := moodle.Payload(p.caller.Call(ctx, moodle.FuncSiteInfo, nil))
	if err != nil {
		return nil, err
	}
	info, ok := moodle.AsMap(payload)
	if !ok || len(info) == 0 {
		return nil, fmt.Errorf("empty site info response")
	}
	return info, nil
}
