package golden

import "github.com/emsight-ai/emsight-engine/pkg/models"

// seedExamples returns the starter set used when no store file exists yet.
// These cover the query shapes the generator most often gets wrong.
func seedExamples() []models.GoldenExample {
	return []models.GoldenExample{
		{
			Question: "What is the approval time in days for the invoice with the longest approval time?",
			SQL: "SELECT \n" +
				"    ii.id,\n" +
				"    DATEDIFF(ii.updated_at, ii.created_at) AS approval_time_in_days\n" +
				"FROM `ems-portal-service`.`invoice_info` ii\n" +
				"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id\n" +
				"WHERE LOWER(ms.name) LIKE LOWER('%approved%')\n" +
				"ORDER BY approval_time_in_days DESC\n" +
				"LIMIT 1",
			Notes: "Approval time = updated_at - created_at. Never use NOW(). Must join master_status.",
			Tags:  []string{"approval_time", "status_filtering"},
		},
		{
			Question: "Which vendor has the worst rejection to approval ratio in the South region?",
			SQL: "SELECT \n" +
				"    u.full_name AS vendor_name,\n" +
				"    SUM(CASE WHEN LOWER(ms.name) LIKE LOWER('%rejected%') THEN 1 ELSE 0 END) * 1.0 / \n" +
				"    NULLIF(SUM(CASE WHEN LOWER(ms.name) LIKE LOWER('%approved%') THEN 1 ELSE 0 END), 0) AS rejection_to_approval_ratio\n" +
				"FROM `ems-portal-service`.`invoice_info` ii\n" +
				"JOIN `ems-auth-service`.`user` u ON ii.created_by = u.id\n" +
				"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id\n" +
				"JOIN `ems-warehouse-service`.`warehouse_info` wi ON ii.warehouse_id = wi.id\n" +
				"JOIN `ems-portal-service`.`quick_code_master` qcm ON wi.region_id = qcm.id\n" +
				"WHERE LOWER(qcm.name) LIKE LOWER('%south%')\n" +
				"GROUP BY u.full_name\n" +
				"HAVING SUM(CASE WHEN LOWER(ms.name) LIKE LOWER('%approved%') THEN 1 ELSE 0 END) > 0\n" +
				"ORDER BY rejection_to_approval_ratio DESC\n" +
				"LIMIT 1",
			Notes: "Ratio = rejected / approved. Region via warehouse to region_id. Must join master_status.",
			Tags:  []string{"rejection_ratio", "region_filtering", "vendor_analysis"},
		},
		{
			Question: "What is the average approval time in hours for approved invoices?",
			SQL: "SELECT \n" +
				"    AVG(TIMESTAMPDIFF(HOUR, ii.created_at, ii.updated_at)) AS avg_approval_hours\n" +
				"FROM `ems-portal-service`.`invoice_info` ii\n" +
				"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id\n" +
				"WHERE LOWER(ms.name) LIKE LOWER('%approved%')",
			Notes: "Use TIMESTAMPDIFF(HOUR, ...) for hours. Same pattern: updated_at - created_at.",
			Tags:  []string{"approval_time", "status_filtering"},
		},
	}
}
