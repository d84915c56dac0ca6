package moodle

// Web-service functions consumed by the dashboard
const (
	FuncSiteInfo                = "core_webservice_get_site_info"
	FuncGetCategories           = "core_course_get_categories"
	FuncGetCourses              = "core_course_get_courses"
	FuncGetCoursesByField       = "core_course_get_courses_by_field"
	FuncGetEnrolledUsers        = "core_enrol_get_enrolled_users"
	FuncGetEnrolledUsersWithCap = "core_enrol_get_enrolled_users_with_capability"
	FuncGetUsers                = "core_user_get_users"
)

// Criteria builds the criteria[i][key]/criteria[i][value] list used by
// category and user search functions
func Criteria(pairs ...interface{}) []map[string]interface{} {
	criteria := make([]map[string]interface{}, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		criteria = append(criteria, map[string]interface{}{
			"key":   pairs[i],
			"value": pairs[i+1],
		})
	}
	return criteria
}

// Options builds the options[i][name]/options[i][value] list accepted by
// core_enrol_get_enrolled_users
func Options(pairs ...interface{}) []map[string]interface{} {
	options := make([]map[string]interface{}, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		options = append(options, map[string]interface{}{
			"name":  pairs[i],
			"value": pairs[i+1],
		})
	}
	return options
}
