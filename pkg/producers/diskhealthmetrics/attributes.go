// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"fmt"
	"sort"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

type SMARTAttribute struct {
	ID          uint8  `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Critical    bool   `json:"critical"`
	Description string `json:"-"`
}

// https://en.wikipedia.org/wiki/Self-Monitoring,_Analysis_and_Reporting_Technology
// https://www.hdsentinel.com/smart/smartattr.php
// Vendors reuse IDs for different purposes; names here are the common
// meaning. The flash IDs follow the SSD conventions.
var SMARTAttributes = []SMARTAttribute{
	{ID: 1, Key: "Raw_Read_Error_Rate", Name: "Raw Read Error Rate", Critical: true, Description: "Errors occurred while reading raw data from a disk"},
	{ID: 2, Key: "Throughput_Performance", Name: "Throughput Performance", Description: "General throughput performance of the hard disk"},
	{ID: 3, Key: "Spin_Up_Time", Name: "Spin Up Time", Critical: true, Description: "Time needed by spindle to spin-up to full RPM"},
	{ID: 4, Key: "Start_Stop_Count", Name: "Start/Stop Count", Description: "Count of start/stop cycles of spindle"},
	{ID: 5, Key: "Reallocated_Sector_Ct", Name: "Reallocated Sector Count", Critical: true, Description: "Count of sectors moved to the spare area"},
	{ID: 6, Key: "Read_Channel_Margin", Name: "Read Channel Margin", Description: "Margin of a channel while reading data"},
	{ID: 7, Key: "Seek_Error_Rate", Name: "Seek Error Rate", Critical: true, Description: "Rate of positioning errors of the read/write heads"},
	{ID: 8, Key: "Seek_Time_Performance", Name: "Seek Time Performance", Critical: true, Description: "Average time of seek operations of the heads"},
	{ID: 9, Key: "Power_On_Hours", Name: "Power-On Hours", Description: "Total time the drive is powered on"},
	{ID: 10, Key: "Spin_Retry_Count", Name: "Spin Retry Count", Critical: true, Description: "Retry count of spin start attempts"},
	{ID: 11, Key: "Calibration_Retry_Count", Name: "Calibration Retry Count", Critical: true, Description: "Number of attempts to calibrate a drive"},
	{ID: 12, Key: "Power_Cycle_Count", Name: "Power Cycle Count", Description: "Number of complete power on/off cycles"},
	{ID: 13, Key: "Soft_Read_Error_Rate", Name: "Soft Read Error Rate", Description: "Number of software read errors"},
	{ID: 22, Key: "Helium_Level", Name: "Helium Level", Description: "Current helium level"},
	{ID: 100, Key: "Gigabytes_Erased", Name: "Gigabytes Erased", Description: "Flash gigabytes erased"},
	{ID: 169, Key: "Remaining_Lifetime_Perc", Name: "Remaining Lifetime", Description: "Remaining life in percent"},
	{ID: 170, Key: "Available_Reserved_Space", Name: "Available Reserved Space", Description: "Amount of reserved space available"},
	{ID: 171, Key: "Program_Fail_Count", Name: "Program Fail Count", Critical: true, Description: "Number of flash program operation failures"},
	{ID: 172, Key: "Erase_Fail_Count", Name: "Erase Fail Count", Critical: true, Description: "Number of flash erase operation failures"},
	{ID: 173, Key: "Wear_Leveling_Count", Name: "Wear Leveling Count", Description: "Average erase count of flash blocks"},
	{ID: 174, Key: "Unexpected_Power_Loss_Count", Name: "Unexpected Power Loss Count", Description: "Number of unexpected power loss events"},
	{ID: 177, Key: "Wear_Range_Delta", Name: "Wear Range Delta", Description: "Delta between most and least worn flash blocks"},
	{ID: 179, Key: "Used_Reserved_Block_Count", Name: "Used Reserved Block Count", Description: "Number of reserved blocks used"},
	{ID: 181, Key: "Program_Fail_Count_Total", Name: "Program Fail Count Total", Description: "Total flash program failures"},
	{ID: 182, Key: "Erase_Fail_Count_Total", Name: "Erase Fail Count Total", Description: "Total flash erase failures"},
	{ID: 183, Key: "Runtime_Bad_Block", Name: "Runtime Bad Block", Description: "Number of runtime bad blocks"},
	{ID: 184, Key: "End-to-End_Error", Name: "End-to-End Error", Critical: true, Description: "Number of end-to-end errors"},
	{ID: 187, Key: "Reported_Uncorrect", Name: "Reported Uncorrectable Errors", Critical: true, Description: "Number of reported uncorrectable errors"},
	{ID: 188, Key: "Command_Timeout", Name: "Command Timeout", Critical: true, Description: "Number of command timeouts"},
	{ID: 189, Key: "High_Fly_Writes", Name: "High Fly Writes", Description: "Number of high fly writes"},
	{ID: 190, Key: "Airflow_Temperature_Cel", Name: "Airflow Temperature Celsius", Description: "Airflow temperature"},
	{ID: 191, Key: "G-Sense_Error_Rate", Name: "G-Sense Error Rate", Description: "Count of errors resulting from shock or vibration"},
	{ID: 192, Key: "Power-Off_Retract_Count", Name: "Power-Off Retract Count", Description: "Count of power off cycles"},
	{ID: 193, Key: "Load_Unload_Cycle_Count", Name: "Load/Unload Cycle Count", Description: "Number of load/unload cycles"},
	{ID: 194, Key: "Temperature_Celsius", Name: "Temperature Celsius", Description: "Disk temperature in Celsius"},
	{ID: 195, Key: "Hardware_ECC_Recovered", Name: "Hardware ECC Recovered", Description: "Count of corrected errors"},
	{ID: 196, Key: "Reallocation_Event_Count", Name: "Reallocation Event Count", Critical: true, Description: "Count of sector remap operations"},
	{ID: 197, Key: "Current_Pending_Sector", Name: "Current Pending Sector Count", Critical: true, Description: "Count of unstable sectors"},
	{ID: 198, Key: "Offline_Uncorrectable", Name: "Offline Uncorrectable Sector Count", Critical: true, Description: "Count of uncorrectable errors when reading/writing"},
	{ID: 199, Key: "UDMA_CRC_Error_Count", Name: "UDMA CRC Error Count", Description: "Count of errors during data transfer between disk and host"},
	{ID: 200, Key: "Write_Error_Rate", Name: "Write Error Rate", Description: "Errors occurred while writing raw data to a disk"},
	{ID: 201, Key: "Soft_Read_Error_Rate", Name: "Soft Read Error Rate", Description: "Number of software read errors"},
	{ID: 202, Key: "Data_Address_Mark_Errors", Name: "Data Address Mark Errors", Description: "Number of data address mark errors"},
	{ID: 203, Key: "Run_Out_Cancel", Name: "Run Out Cancel", Description: "Number of data correction errors"},
	{ID: 204, Key: "Soft_ECC_Correction", Name: "Soft ECC Correction", Description: "Number of corrected data errors"},
	{ID: 205, Key: "Thermal_Asperity_Rate", Name: "Thermal Asperity Rate", Description: "Number of thermal problems"},
	{ID: 206, Key: "Flying_Height", Name: "Flying Height", Description: "Head flying height"},
	{ID: 207, Key: "Spin_High_Current", Name: "Spin High Current", Description: "Current value during spin up"},
	{ID: 208, Key: "Spin_Buzz", Name: "Spin Buzz", Description: "Number of cycles needed to spin up"},
	{ID: 209, Key: "Offline_Seek_Performance", Name: "Offline Seek Performance", Description: "Drive performance during offline operations"},
	{ID: 220, Key: "Disk_Shift", Name: "Disk Shift", Description: "Distance the disk has shifted relative to the spindle"},
	{ID: 221, Key: "G-Sense_Error_Rate_2", Name: "G-Sense Error Rate", Description: "Count of errors resulting from shock or vibration"},
	{ID: 222, Key: "Loaded_Hours", Name: "Loaded Hours", Description: "Number of powered on hours"},
	{ID: 223, Key: "Load_Unload_Retry_Count", Name: "Load/Unload Retry Count", Description: "Number of load/unload operations"},
	{ID: 224, Key: "Load_Friction", Name: "Load Friction", Description: "Mechanical friction rate"},
	{ID: 225, Key: "Host_Writes_32MiB", Name: "Host Writes", Description: "Host writes in 32 MiB units"},
	{ID: 226, Key: "Load-in_Time", Name: "Load-in Time", Description: "Total time the heads are loaded"},
	{ID: 227, Key: "Torque_Amplification_Count", Name: "Torque Amplification Count", Description: "Rate of torque increase"},
	{ID: 228, Key: "Power-off_Retract_Count_2", Name: "Power-off Retract Count", Description: "Number of power off cycles"},
	{ID: 230, Key: "Life_Curve_Status", Name: "Life Curve Status", Description: "Head amplitude on HDDs, life curve on SSDs"},
	{ID: 231, Key: "SSD_Life_Left", Name: "SSD Life Left", Description: "Remaining life on SSDs, temperature on some HDDs"},
	{ID: 232, Key: "Available_Reservd_Space", Name: "Available Reserved Space", Description: "Amount of reserved space available"},
	{ID: 233, Key: "Media_Wearout_Indicator", Name: "Media Wearout Indicator", Description: "Wear of the NAND flash"},
	{ID: 234, Key: "Average_Erase_Count", Name: "Average Erase Count", Description: "Average erase count"},
	{ID: 240, Key: "Head_Flying_Hours", Name: "Head Flying Hours", Description: "Number of head positioning hours"},
	{ID: 241, Key: "Total_LBAs_Written", Name: "Total LBAs Written", Description: "Total host writes"},
	{ID: 242, Key: "Total_LBAs_Read", Name: "Total LBAs Read", Description: "Total host reads"},
	{ID: 245, Key: "Remaining_Life", Name: "Remaining Life", Description: "Remaining life or NAND writes depending on vendor"},
	{ID: 246, Key: "Total_Host_Sector_Write", Name: "Total Host Sector Writes", Description: "Total number of host sector writes"},
	{ID: 249, Key: "NAND_Writes_1GiB", Name: "NAND Writes", Description: "Number of writes to NAND in GiB"},
	{ID: 250, Key: "Read_Error_Retry_Rate", Name: "Read Error Retry Rate", Description: "Number of retries during read operations"},
	{ID: 254, Key: "Free_Fall_Protection", Name: "Free Fall Protection", Description: "Free fall events detected"},
}

var attributeByID = func() map[uint8]SMARTAttribute {
	m := make(map[uint8]SMARTAttribute, len(SMARTAttributes))
	for _, a := range SMARTAttributes {
		m[a.ID] = a
	}
	return m
}()

// LookupAttribute returns the catalogue entry for id. Unknown IDs get a
// generic vendor specific entry.
func LookupAttribute(id uint8) SMARTAttribute {
	if a, ok := attributeByID[id]; ok {
		return a
	}
	return SMARTAttribute{
		ID:   id,
		Key:  fmt.Sprintf("Unknown_Attribute_%d", id),
		Name: fmt.Sprintf("Vendor Specific 0x%02X", id),
	}
}

// reportAttributes converts a SMART table into report rows, sorted by ID.
func reportAttributes(attrs []ata.Attribute, p vendor.Profile) []ReportAttribute {
	out := make([]ReportAttribute, 0, len(attrs))
	for _, a := range attrs {
		meta := LookupAttribute(a.ID)
		out = append(out, ReportAttribute{
			ID:        a.ID,
			Key:       meta.Key,
			Name:      meta.Name,
			Current:   a.Current,
			Worst:     a.Worst,
			Threshold: a.Threshold,
			Raw:       a.RawValue(),
			Critical:  meta.Critical,
			Failing:   health.CountsAsError(a, p) && a.Current < a.Threshold,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
